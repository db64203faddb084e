package encoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func featsInfo(name string) ort.InputOutputInfo {
	return ort.InputOutputInfo{
		Name:       name,
		Dimensions: ort.NewShape(-1, -1, DefaultFeatDim),
		DataType:   ort.TensorElementDataTypeFloat,
	}
}

func lengthsInfo(name string, dtype ort.TensorElementDataType) ort.InputOutputInfo {
	return ort.InputOutputInfo{Name: name, Dimensions: ort.NewShape(-1), DataType: dtype}
}

func hiddenOutputs() []ort.InputOutputInfo {
	return []ort.InputOutputInfo{{
		Name:       "hidden",
		Dimensions: ort.NewShape(-1, 512, -1),
		DataType:   ort.TensorElementDataTypeFloat,
	}}
}

func TestResolveIOSingleInput(t *testing.T) {
	b, err := ResolveIO([]ort.InputOutputInfo{featsInfo("feats")}, hiddenOutputs(), DefaultInputName, DefaultOutputName)
	require.NoError(t, err)
	assert.Equal(t, "feats", b.Feats.Name)
	assert.Equal(t, []int64{-1, -1, 560}, b.Feats.Dims)
	assert.Empty(t, b.Lengths.Name)
	assert.Equal(t, []string{"feats"}, b.InputNames())
	assert.Equal(t, "hidden", b.Hidden.Name)
	assert.Equal(t, []int64{-1, 512, -1}, b.Hidden.Dims)
}

func TestResolveIOLengthsSecond(t *testing.T) {
	inputs := []ort.InputOutputInfo{
		featsInfo("speech"),
		lengthsInfo("speech_lengths", ort.TensorElementDataTypeInt32),
	}
	// 名称不匹配时取第一个非 lengths 输入
	b, err := ResolveIO(inputs, hiddenOutputs(), DefaultInputName, DefaultOutputName)
	require.NoError(t, err)
	assert.Equal(t, "speech", b.Feats.Name)
	assert.Equal(t, "speech_lengths", b.Lengths.Name)
	assert.False(t, b.Lengths64)
	assert.Equal(t, []string{"speech", "speech_lengths"}, b.InputNames())
	assert.Len(t, b.Inputs, 2)
}

func TestResolveIOLengthsFirst(t *testing.T) {
	inputs := []ort.InputOutputInfo{
		lengthsInfo("feats_len", ort.TensorElementDataTypeInt32),
		featsInfo("x"),
	}
	b, err := ResolveIO(inputs, hiddenOutputs(), "", "")
	require.NoError(t, err)
	assert.Equal(t, "x", b.Feats.Name)
	assert.Equal(t, "feats_len", b.Lengths.Name)
	// 喂入顺序固定为 feats, lengths
	assert.Equal(t, []string{"x", "feats_len"}, b.InputNames())
}

func TestResolveIOInt64Lengths(t *testing.T) {
	inputs := []ort.InputOutputInfo{
		featsInfo("feats"),
		lengthsInfo("Lengths", ort.TensorElementDataTypeInt64),
	}
	b, err := ResolveIO(inputs, hiddenOutputs(), DefaultInputName, DefaultOutputName)
	require.NoError(t, err)
	assert.Equal(t, "Lengths", b.Lengths.Name)
	assert.True(t, b.Lengths64)
}

func TestResolveIOOutputSelection(t *testing.T) {
	outputs := []ort.InputOutputInfo{
		{Name: "token_num", Dimensions: ort.NewShape(-1)},
		{Name: "hidden", Dimensions: ort.NewShape(-1, 512, -1)},
	}
	b, err := ResolveIO([]ort.InputOutputInfo{featsInfo("feats")}, outputs, DefaultInputName, DefaultOutputName)
	require.NoError(t, err)
	assert.Equal(t, "hidden", b.Hidden.Name)

	b, err = ResolveIO([]ort.InputOutputInfo{featsInfo("feats")}, outputs, DefaultInputName, "enc_out")
	require.NoError(t, err)
	assert.Equal(t, "token_num", b.Hidden.Name)
}

func TestResolveIOErrors(t *testing.T) {
	_, err := ResolveIO(nil, hiddenOutputs(), DefaultInputName, DefaultOutputName)
	require.Error(t, err)

	_, err = ResolveIO([]ort.InputOutputInfo{featsInfo("feats")}, nil, DefaultInputName, DefaultOutputName)
	require.Error(t, err)

	// 唯一的输入是 lengths
	_, err = ResolveIO([]ort.InputOutputInfo{lengthsInfo("lengths", ort.TensorElementDataTypeInt32)},
		hiddenOutputs(), DefaultInputName, DefaultOutputName)
	require.ErrorIs(t, err, ErrNoFeatsInput)
}
