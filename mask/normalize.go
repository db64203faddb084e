package mask

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

const (
	// DefaultNormP 默认范数阶数
	DefaultNormP = 2.0
	// DefaultNormDim 默认归一化维度
	DefaultNormDim = 1
)

// Normalize 沿 dim 维做 Lp 归一化
//
// 范数为 0 时按 IEEE 规则得到 Inf/NaN, 不做特殊处理
//
// # Params:
//
//	in: 输入张量
//	p: 范数阶数
//	dim: 归一化维度, 负数表示从末尾开始计数
//	out: (可选) 输出张量, 为 nil 时新建
func Normalize[T ~float32 | ~float64](in *Tensor[T], p float64, dim int, out *Tensor[T]) (*Tensor[T], error) {
	axis, err := resolveDim(dim, len(in.Shape))
	if err != nil {
		return nil, err
	}
	if out == nil {
		out, err = NewTensor[T](in.Shape...)
		if err != nil {
			return nil, err
		}
	} else if !sameShape(in.Shape, out.Shape) {
		return nil, fmt.Errorf("%w: 输入 %v 输出 %v", ErrShapeMismatch, in.Shape, out.Shape)
	}

	outer, inner := 1, 1
	for _, d := range in.Shape[:axis] {
		outer *= d
	}
	for _, d := range in.Shape[axis+1:] {
		inner *= d
	}
	n := in.Shape[axis]

	lane := make([]float64, n)
	for o := 0; o < outer; o++ {
		for i := 0; i < inner; i++ {
			base := o*n*inner + i
			for k := 0; k < n; k++ {
				lane[k] = float64(in.Data[base+k*inner])
			}
			denom := T(floats.Norm(lane, p))
			for k := 0; k < n; k++ {
				idx := base + k*inner
				out.Data[idx] = in.Data[idx] / denom
			}
		}
	}
	return out, nil
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
