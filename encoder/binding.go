package encoder

import (
	"errors"
	"fmt"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrNoFeatsInput 模型没有可用的特征输入
var ErrNoFeatsInput = errors.New("encoder: 未找到特征输入")

// TensorInfo 模型声明的输入输出信息
type TensorInfo struct {
	Name string
	Type string
	Dims []int64 // 动态维度为 -1
}

// Binding 模型输入输出与 feats / lengths / hidden 的对应关系
type Binding struct {
	Inputs  []TensorInfo
	Outputs []TensorInfo

	Feats     TensorInfo
	Lengths   TensorInfo // 单输入模型时 Name 为空
	Lengths64 bool       // lengths 输入为 int64
	Hidden    TensorInfo
}

// ResolveIO 根据模型声明的输入输出确定 feats / lengths / hidden
//
// feats 优先按名称匹配, 否则取第一个非 lengths 输入; 名称包含 len 的输入视为 lengths;
// hidden 按名称匹配, 否则取第一个输出
//
// # Params:
//
//	inputs, outputs: ort.GetInputOutputInfo 的结果
//	inputName: 期望的特征输入名
//	outputName: 期望的输出名
func ResolveIO(inputs, outputs []ort.InputOutputInfo, inputName, outputName string) (*Binding, error) {
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("模型缺少输入或输出")
	}

	b := &Binding{}
	featsIdx, lengthsIdx := -1, -1
	for i, in := range inputs {
		b.Inputs = append(b.Inputs, toTensorInfo(in))
		switch {
		case inputName != "" && in.Name == inputName:
			featsIdx = i
		case lengthsIdx < 0 && strings.Contains(strings.ToLower(in.Name), "len"):
			lengthsIdx = i
			b.Lengths64 = in.DataType == ort.TensorElementDataTypeInt64
		}
	}
	if featsIdx < 0 {
		for i := range inputs {
			if i != lengthsIdx {
				featsIdx = i
				break
			}
		}
	}
	if featsIdx < 0 {
		return nil, ErrNoFeatsInput
	}
	b.Feats = b.Inputs[featsIdx]
	if lengthsIdx >= 0 {
		b.Lengths = b.Inputs[lengthsIdx]
	}

	hiddenIdx := 0
	for i, out := range outputs {
		b.Outputs = append(b.Outputs, toTensorInfo(out))
		if outputName != "" && out.Name == outputName {
			hiddenIdx = i
		}
	}
	b.Hidden = b.Outputs[hiddenIdx]
	return b, nil
}

// InputNames 推理时按顺序喂入的输入名
func (b *Binding) InputNames() []string {
	names := []string{b.Feats.Name}
	if b.Lengths.Name != "" {
		names = append(names, b.Lengths.Name)
	}
	return names
}

func toTensorInfo(info ort.InputOutputInfo) TensorInfo {
	return TensorInfo{
		Name: info.Name,
		Type: fmt.Sprintf("%v", info.DataType),
		Dims: append([]int64(nil), info.Dimensions...),
	}
}
