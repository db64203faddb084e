package mask

import "fmt"

// AutoMaxLen 掩码长度取 lengths 的最大值
const AutoMaxLen = -1

// SequenceMask 通过广播比较生成有效位置掩码, 形状为 (batch, maxLen)
//
// # Params:
//
//	lengths: 每个样本的有效长度
//	maxLen: 掩码长度, AutoMaxLen 时取 lengths 的最大值, 0 得到空掩码
func SequenceMask[T Element](lengths []int32, maxLen int) (*Tensor[T], error) {
	if maxLen < AutoMaxLen {
		return nil, fmt.Errorf("%w: 掩码长度 %d", ErrInvalidShape, maxLen)
	}
	if maxLen == AutoMaxLen {
		maxLen = 0
		for _, l := range lengths {
			maxLen = max(maxLen, int(l))
		}
	}
	out, err := NewTensor[T](len(lengths), maxLen)
	if err != nil {
		return nil, err
	}
	for i, l := range lengths {
		if l < 0 {
			return nil, fmt.Errorf("%w: lengths[%d]=%d", ErrNegativeLength, i, l)
		}
		row := out.Data[i*maxLen : (i+1)*maxLen]
		for t := 0; t < maxLen && int32(t) < l; t++ {
			row[t] = 1
		}
	}
	return out, nil
}
