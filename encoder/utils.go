package encoder

import (
	"fmt"
	"math"
)

// Hidden 模型输出的 hidden states, 布局为 (batch, feature, time)
type Hidden struct {
	Shape []int64
	Data  []float32
}

// Frames 时间维长度
func (h *Hidden) Frames() int {
	if len(h.Shape) == 0 {
		return 0
	}
	return int(h.Shape[len(h.Shape)-1])
}

// Resample 沿时间维做线性插值, 将 hidden states 映射到新的帧数
//
// # Params:
//
//	frames: 目标帧数
func (h *Hidden) Resample(frames int) (*Hidden, error) {
	t := h.Frames()
	if t <= 0 || frames <= 0 {
		return nil, fmt.Errorf("非法帧数: 源 %d 目标 %d", t, frames)
	}
	if len(h.Data)%t != 0 {
		return nil, fmt.Errorf("数据长度 %d 不能被帧数 %d 整除", len(h.Data), t)
	}
	rows := len(h.Data) / t

	shape := append([]int64(nil), h.Shape...)
	shape[len(shape)-1] = int64(frames)
	out := &Hidden{Shape: shape, Data: make([]float32, rows*frames)}

	for tOut := 0; tOut < frames; tOut++ {
		ratio := 0.0
		if frames > 1 {
			ratio = float64(tOut) / float64(frames-1) * float64(t-1)
		}
		t0 := int(math.Floor(ratio))
		t1 := min(t0+1, t-1)
		a := float32(ratio - float64(t0))
		for r := 0; r < rows; r++ {
			src := h.Data[r*t : (r+1)*t]
			out.Data[r*frames+tOut] = src[t0]*(1-a) + src[t1]*a
		}
	}
	return out, nil
}

// LengthsFromShape 单输入适配: 按 feats 的 (batch, time, dim) 形状推导每个样本的有效长度
func LengthsFromShape(shape []int64) ([]int32, error) {
	if len(shape) < 2 {
		return nil, fmt.Errorf("feats 形状 %v 至少需要两维", shape)
	}
	batch, t := shape[0], shape[1]
	if batch < 0 || t < 0 || t > math.MaxInt32 {
		return nil, fmt.Errorf("feats 形状 %v 非法", shape)
	}
	lengths := make([]int32, batch)
	for i := range lengths {
		lengths[i] = int32(t)
	}
	return lengths, nil
}
