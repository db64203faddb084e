package mask

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultMaxSeqLen 掩码支持的默认最大序列长度
	DefaultMaxSeqLen = 512
)

var (
	// ErrBatchAxis length dim 不能为 0 (batch 维)
	ErrBatchAxis = errors.New("mask: length dim 不能为 0")
	// ErrExceedsCapacity 长度超出掩码容量
	ErrExceedsCapacity = errors.New("mask: 长度超出最大序列长度")
	// ErrNegativeLength 长度为负数
	ErrNegativeLength = errors.New("mask: 长度不能为负数")
)

// PadMask 生成填充位置掩码
//
// 所有长度统一使用 int32, 以兼容不支持 int64 的导出与推理环境
type PadMask struct {
	maxSeqLen int
	flip      bool
}

// NewPadMask 创建填充掩码生成器
//
// # Params:
//
//	maxSeqLen: 支持的最大序列长度, 长度或目标长度超过该值会报错
//	flip: true 时填充位置为 1, false 时有效位置为 1
func NewPadMask(maxSeqLen int, flip bool) *PadMask {
	if maxSeqLen <= 0 {
		maxSeqLen = DefaultMaxSeqLen
	}
	return &PadMask{maxSeqLen: maxSeqLen, flip: flip}
}

// DefaultPadMask 返回默认的掩码生成器 (512, 填充位置为 1)
func DefaultPadMask() *PadMask {
	return NewPadMask(DefaultMaxSeqLen, true)
}

// MaxSeqLen 返回容量上限
func (p *PadMask) MaxSeqLen() int {
	return p.maxSeqLen
}

// Flip 返回掩码极性
func (p *PadMask) Flip() bool {
	return p.flip
}

type padOptions struct {
	ref       []int
	lengthDim int
	maxLen    int
	hasMax    bool
}

// PadOption 掩码生成的可选参数
type PadOption func(*padOptions)

// WithReference 指定参考张量形状 xs, 其末维决定掩码长度
func WithReference(shape ...int) PadOption {
	return func(o *padOptions) {
		o.ref = append([]int(nil), shape...)
	}
}

// WithLengthDim 指定长度所在维度, 默认 -1
func WithLengthDim(dim int) PadOption {
	return func(o *padOptions) {
		o.lengthDim = dim
	}
}

// WithMaxLen 显式指定掩码长度
func WithMaxLen(n int) PadOption {
	return func(o *padOptions) {
		o.maxLen = n
		o.hasMax = true
	}
}

// Make 根据有效长度生成掩码
//
// # Params:
//
//	lengths: 每个样本的有效长度
//	opts: 参考形状 / 长度维度 / 最大长度
func (p *PadMask) Make(lengths []int32, opts ...PadOption) (*Tensor[float32], error) {
	o := padOptions{lengthDim: -1}
	for _, opt := range opts {
		opt(&o)
	}
	if o.lengthDim == 0 {
		return nil, fmt.Errorf("%w: %d", ErrBatchAxis, o.lengthDim)
	}

	var maxLength int32
	for i, l := range lengths {
		if l < 0 {
			return nil, fmt.Errorf("%w: lengths[%d]=%d", ErrNegativeLength, i, l)
		}
		if int(l) > p.maxSeqLen {
			return nil, fmt.Errorf("%w: lengths[%d]=%d > %d", ErrExceedsCapacity, i, l, p.maxSeqLen)
		}
		if l > maxLength {
			maxLength = l
		}
	}

	// 三维参考张量时, 长度沿非长度维广播
	rows := 0
	if len(o.ref) == 3 {
		if o.ref[0] != len(lengths) {
			return nil, fmt.Errorf("%w: batch %d 与 lengths 数量 %d 不一致", ErrShapeMismatch, o.ref[0], len(lengths))
		}
		if o.lengthDim == 1 {
			rows = o.ref[2]
		} else {
			rows = o.ref[1]
		}
	}

	var m int
	switch {
	case o.hasMax:
		m = o.maxLen
	case len(o.ref) > 0:
		m = o.ref[len(o.ref)-1]
	default:
		m = int(maxLength)
	}
	if m < 0 {
		return nil, fmt.Errorf("%w: 掩码长度 %d", ErrInvalidShape, m)
	}
	if m > p.maxSeqLen {
		return nil, fmt.Errorf("%w: 掩码长度 %d > %d", ErrExceedsCapacity, m, p.maxSeqLen)
	}

	var (
		mask *Tensor[float32]
		err  error
	)
	if len(o.ref) == 3 {
		mask, err = NewTensor[float32](len(lengths), rows, m)
	} else {
		mask, err = NewTensor[float32](len(lengths), m)
	}
	if err != nil {
		return nil, err
	}

	var padded, valid float32 = 1, 0
	if !p.flip {
		padded, valid = 0, 1
	}
	perItem := len(mask.Data) / max(len(lengths), 1)
	for i, l := range lengths {
		item := mask.Data[i*perItem : (i+1)*perItem]
		for off := 0; off < len(item); off += max(m, 1) {
			row := item[off:min(off+m, len(item))]
			for t := range row {
				if int32(t) >= l {
					row[t] = padded
				} else {
					row[t] = valid
				}
			}
		}
	}

	if o.lengthDim == 1 {
		return mask.Transpose12()
	}
	return mask, nil
}

// MakeInt64 与 Make 相同, 但接受 int64 长度并收窄为 int32
func (p *PadMask) MakeInt64(lengths []int64, opts ...PadOption) (*Tensor[float32], error) {
	narrow := make([]int32, len(lengths))
	for i, l := range lengths {
		if l < math.MinInt32 || l > math.MaxInt32 {
			return nil, fmt.Errorf("%w: lengths[%d]=%d 超出 int32 范围", ErrExceedsCapacity, i, l)
		}
		narrow[i] = int32(l)
	}
	return p.Make(narrow, opts...)
}
