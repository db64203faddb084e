package mask

import "fmt"

// SubsequentMask 生成 size x size 的下三角全 1 矩阵, 用于屏蔽未来位置
func SubsequentMask(size int) (*Tensor[float32], error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: size=%d", ErrInvalidShape, size)
	}
	out, err := NewTensor[float32](size, size)
	if err != nil {
		return nil, err
	}
	for i := 0; i < size; i++ {
		row := out.Data[i*size : (i+1)*size]
		for j := 0; j <= i; j++ {
			row[j] = 1
		}
	}
	return out, nil
}
