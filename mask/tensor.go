package mask

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch 张量形状不匹配
	ErrShapeMismatch = errors.New("mask: 形状不匹配")
	// ErrInvalidShape 非法的张量形状
	ErrInvalidShape = errors.New("mask: 非法形状")
	// ErrInvalidAxis 非法的维度索引
	ErrInvalidAxis = errors.New("mask: 非法维度")
)

// Element 掩码张量支持的元素类型
type Element interface {
	~float32 | ~float64 | ~int32 | ~int64 | ~uint8
}

// Tensor 行优先存储的稠密张量
type Tensor[T Element] struct {
	Shape []int
	Data  []T
}

// NewTensor 创建指定形状的零值张量, 允许维度为 0
func NewTensor[T Element](shape ...int) (*Tensor[T], error) {
	size := 1
	for i, d := range shape {
		if d < 0 {
			return nil, fmt.Errorf("%w: shape[%d]=%d", ErrInvalidShape, i, d)
		}
		size *= d
	}
	s := make([]int, len(shape))
	copy(s, shape)
	return &Tensor[T]{Shape: s, Data: make([]T, size)}, nil
}

// Dims 返回维度数
func (t *Tensor[T]) Dims() int {
	return len(t.Shape)
}

// Len 返回元素总数
func (t *Tensor[T]) Len() int {
	return len(t.Data)
}

// At 读取指定位置的元素
func (t *Tensor[T]) At(idx ...int) T {
	return t.Data[t.offset(idx)]
}

// Set 写入指定位置的元素
func (t *Tensor[T]) Set(v T, idx ...int) {
	t.Data[t.offset(idx)] = v
}

func (t *Tensor[T]) offset(idx []int) int {
	if len(idx) != len(t.Shape) {
		panic(fmt.Sprintf("mask: 索引维度 %d 与张量维度 %d 不一致", len(idx), len(t.Shape)))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.Shape[i] {
			panic(fmt.Sprintf("mask: 索引 %d 越界 (维度 %d 大小 %d)", v, i, t.Shape[i]))
		}
		off = off*t.Shape[i] + v
	}
	return off
}

// Transpose12 交换三维张量的第 1、2 维
func (t *Tensor[T]) Transpose12() (*Tensor[T], error) {
	if len(t.Shape) != 3 {
		return nil, fmt.Errorf("%w: 需要三维张量, 实际为 %d 维", ErrInvalidAxis, len(t.Shape))
	}
	b, r, c := t.Shape[0], t.Shape[1], t.Shape[2]
	out := &Tensor[T]{Shape: []int{b, c, r}, Data: make([]T, len(t.Data))}
	for i := 0; i < b; i++ {
		base := i * r * c
		for j := 0; j < r; j++ {
			for k := 0; k < c; k++ {
				out.Data[base+k*r+j] = t.Data[base+j*c+k]
			}
		}
	}
	return out, nil
}

// Equal 判断形状与数据是否完全一致
func (t *Tensor[T]) Equal(o *Tensor[T]) bool {
	if t == nil || o == nil {
		return t == o
	}
	if len(t.Shape) != len(o.Shape) || len(t.Data) != len(o.Data) {
		return false
	}
	for i := range t.Shape {
		if t.Shape[i] != o.Shape[i] {
			return false
		}
	}
	for i := range t.Data {
		if t.Data[i] != o.Data[i] {
			return false
		}
	}
	return true
}

// resolveDim 将负数维度换算为正向索引
func resolveDim(dim, rank int) (int, error) {
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		return 0, fmt.Errorf("%w: dim=%d rank=%d", ErrInvalidAxis, dim, rank)
	}
	return dim, nil
}
