package mask

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func countRow(row []float32, v float32) int {
	n := 0
	for _, x := range row {
		if x == v {
			n++
		}
	}
	return n
}

func TestPadMaskDefault(t *testing.T) {
	m, err := DefaultPadMask().Make([]int32{10})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 10}, m.Shape)
	for _, v := range m.Data {
		assert.Equal(t, float32(0), v)
	}
}

func TestPadMaskCounts(t *testing.T) {
	lengths := []int32{0, 1, 3, 7, 7}
	const target = 9
	for _, flip := range []bool{true, false} {
		m, err := NewPadMask(64, flip).Make(lengths, WithMaxLen(target))
		require.NoError(t, err)
		require.Equal(t, []int{len(lengths), target}, m.Shape)

		padded := float32(1)
		if !flip {
			padded = 0
		}
		for i, l := range lengths {
			row := m.Data[i*target : (i+1)*target]
			assert.Equal(t, target-int(l), countRow(row, padded), "flip=%v item=%d", flip, i)
			for tt, v := range row {
				if int32(tt) >= l {
					assert.Equal(t, padded, v)
				}
			}
		}
	}
}

func TestPadMaskZeroLengthAllPadded(t *testing.T) {
	m, err := DefaultPadMask().Make([]int32{0, 4})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1}, m.Data[:4])
	assert.Equal(t, []float32{0, 0, 0, 0}, m.Data[4:])
}

func TestPadMaskAllValid(t *testing.T) {
	m, err := DefaultPadMask().Make([]int32{5, 8}, WithMaxLen(5))
	require.NoError(t, err)
	assert.Equal(t, 0, countRow(m.Data, 1))
}

func TestPadMaskBatchAxis(t *testing.T) {
	_, err := DefaultPadMask().Make([]int32{3}, WithLengthDim(0))
	require.ErrorIs(t, err, ErrBatchAxis)
}

func TestPadMaskCapacity(t *testing.T) {
	p := NewPadMask(8, true)

	_, err := p.Make([]int32{9})
	require.ErrorIs(t, err, ErrExceedsCapacity)

	_, err = p.Make([]int32{2}, WithMaxLen(16))
	require.ErrorIs(t, err, ErrExceedsCapacity)

	_, err = p.Make([]int32{-1})
	require.ErrorIs(t, err, ErrNegativeLength)

	m, err := p.Make([]int32{8})
	require.NoError(t, err)
	assert.Equal(t, 0, countRow(m.Data, 1))
}

func TestPadMaskReference(t *testing.T) {
	// xs: (B=2, A=3, C=4)
	m, err := DefaultPadMask().Make([]int32{2, 4}, WithReference(2, 3, 4))
	require.NoError(t, err)
	require.Equal(t, []int{2, 3, 4}, m.Shape)
	for j := 0; j < 3; j++ {
		assert.Equal(t, float32(0), m.At(0, j, 1))
		assert.Equal(t, float32(1), m.At(0, j, 2))
		assert.Equal(t, float32(0), m.At(1, j, 3))
	}

	_, err = DefaultPadMask().Make([]int32{2}, WithReference(2, 3, 4))
	require.ErrorIs(t, err, ErrShapeMismatch)
}

func TestPadMaskLengthDimOne(t *testing.T) {
	// xs: (B=1, A=3, C=5), 长度沿 C 广播后转置
	m, err := DefaultPadMask().Make([]int32{2}, WithReference(1, 3, 5), WithLengthDim(1))
	require.NoError(t, err)
	require.Equal(t, []int{1, 5, 5}, m.Shape)
	for r := 0; r < 5; r++ {
		for c := 0; c < 5; c++ {
			want := float32(0)
			if r >= 2 {
				want = 1
			}
			assert.Equal(t, want, m.At(0, r, c))
		}
	}

	_, err = DefaultPadMask().Make([]int32{2}, WithLengthDim(1))
	require.ErrorIs(t, err, ErrInvalidAxis)
}

func TestPadMaskIdempotent(t *testing.T) {
	p := NewPadMask(128, false)
	lengths := []int32{3, 0, 17, 64}
	a, err := p.Make(lengths, WithMaxLen(80))
	require.NoError(t, err)
	b, err := p.Make(lengths, WithMaxLen(80))
	require.NoError(t, err)
	assert.True(t, a.Equal(b))
}

func TestPadMaskInt64(t *testing.T) {
	m, err := DefaultPadMask().MakeInt64([]int64{2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1, 0, 0, 0}, m.Data)

	_, err = DefaultPadMask().MakeInt64([]int64{math.MaxInt32 + 1})
	require.ErrorIs(t, err, ErrExceedsCapacity)
}

func TestPadMaskMatchesSequenceMask(t *testing.T) {
	lengths := []int32{0, 1, 5, 12, 12}
	pad, err := NewPadMask(32, false).Make(lengths)
	require.NoError(t, err)
	seq, err := SequenceMask[float32](lengths, AutoMaxLen)
	require.NoError(t, err)
	assert.True(t, pad.Equal(seq))

	// 显式的 0 宽度两者一致
	pad, err = NewPadMask(32, false).Make(lengths, WithMaxLen(0))
	require.NoError(t, err)
	seq, err = SequenceMask[float32](lengths, 0)
	require.NoError(t, err)
	assert.Equal(t, []int{5, 0}, seq.Shape)
	assert.True(t, pad.Equal(seq))
}

func TestSequenceMask(t *testing.T) {
	m, err := SequenceMask[uint8]([]int32{1, 3}, 4)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, m.Shape)
	assert.Equal(t, []uint8{1, 0, 0, 0, 1, 1, 1, 0}, m.Data)

	i64, err := SequenceMask[int64]([]int32{2, 1}, AutoMaxLen)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, i64.Shape)
	assert.Equal(t, []int64{1, 1, 1, 0}, i64.Data)

	_, err = SequenceMask[float32]([]int32{-2}, 3)
	require.ErrorIs(t, err, ErrNegativeLength)

	_, err = SequenceMask[float32]([]int32{1}, -2)
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestNormalizeUnitNorm(t *testing.T) {
	in := &Tensor[float64]{Shape: []int{2, 3, 2}, Data: []float64{
		1, 2, 3, 4, 5, 6,
		-1, 0, 2, 7, 0.5, -3,
	}}
	for _, p := range []float64{1, 2, 3} {
		out, err := Normalize(in, p, DefaultNormDim, nil)
		require.NoError(t, err)
		for b := 0; b < 2; b++ {
			for c := 0; c < 2; c++ {
				sum := 0.0
				for k := 0; k < 3; k++ {
					sum += math.Pow(math.Abs(out.At(b, k, c)), p)
				}
				assert.InDelta(t, 1.0, math.Pow(sum, 1/p), 1e-9)
			}
		}
	}
}

func TestNormalizeNegativeDimAndOut(t *testing.T) {
	in := &Tensor[float32]{Shape: []int{2, 2}, Data: []float32{3, 4, 0, 5}}
	out, err := NewTensor[float32](2, 2)
	require.NoError(t, err)
	got, err := Normalize(in, 2, -1, out)
	require.NoError(t, err)
	assert.Same(t, out, got)
	assert.InDeltaSlice(t, []float32{0.6, 0.8, 0, 1}, got.Data, 1e-6)

	bad, _ := NewTensor[float32](3)
	_, err = Normalize(in, 2, -1, bad)
	require.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Normalize(in, 2, 2, nil)
	require.ErrorIs(t, err, ErrInvalidAxis)
}

func TestNormalizeZeroNorm(t *testing.T) {
	in := &Tensor[float64]{Shape: []int{1, 2}, Data: []float64{0, 0}}
	out, err := Normalize(in, 2, 1, nil)
	require.NoError(t, err)
	for _, v := range out.Data {
		assert.True(t, math.IsNaN(v))
	}
}

func TestSubsequentMask(t *testing.T) {
	for _, n := range []int{0, 1, 4, 9} {
		m, err := SubsequentMask(n)
		require.NoError(t, err)
		ones := 0
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				v := m.At(i, j)
				if v == 1 {
					ones++
					assert.LessOrEqual(t, j, i)
				} else {
					assert.Greater(t, j, i)
				}
			}
		}
		assert.Equal(t, n*(n+1)/2, ones)
	}

	_, err := SubsequentMask(-1)
	require.ErrorIs(t, err, ErrInvalidShape)
}

func TestTranspose12(t *testing.T) {
	in := &Tensor[int32]{Shape: []int{1, 2, 3}, Data: []int32{1, 2, 3, 4, 5, 6}}
	out, err := in.Transpose12()
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 2}, out.Shape)
	assert.Equal(t, []int32{1, 4, 2, 5, 3, 6}, out.Data)
}
