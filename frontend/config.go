package frontend

const (
	// SampleRate 采样率
	SampleRate = 16000
	// channels 声道数
	channels = 1
	// bitsPerSample 采样位数
	bitsPerSample = 16
	// preEmphasis 预加重系数
	preEmphasis = 0.97
)

// Config 前端特征提取参数
type Config struct {
	CMVNPath string // (可选) am.mvn 文件路径, 为空时按整句统计量归一化

	MelBins     int // Mel 滤波器个数, 默认 80
	FrameLength int // 帧长 (采样点), 默认 400 (25ms @ 16kHz)
	FrameShift  int // 帧移 (采样点), 默认 160 (10ms @ 16kHz)
	FFTSize     int // FFT 点数, 默认 512
	LfrM        int // LFR 拼接帧数, 默认 7
	LfrN        int // LFR 跳帧数, 默认 6
}

// DefaultConfig 返回 Paraformer 的默认前端配置
func DefaultConfig() Config {
	return Config{
		CMVNPath:    "./weights/speech_paraformer-large_asr_nat-zh-cn-16k-common-vocab8404-pytorch/am.mvn",
		MelBins:     80,
		FrameLength: 400,
		FrameShift:  160,
		FFTSize:     512,
		LfrM:        7,
		LfrN:        6,
	}
}

// FeatDim LFR 之后的特征维度
func (c Config) FeatDim() int {
	return c.MelBins * c.LfrM
}

// withDefaults 用默认值补齐未设置的字段
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MelBins <= 0 {
		c.MelBins = d.MelBins
	}
	if c.FrameLength <= 0 {
		c.FrameLength = d.FrameLength
	}
	if c.FrameShift <= 0 {
		c.FrameShift = d.FrameShift
	}
	if c.FFTSize <= 0 {
		c.FFTSize = d.FFTSize
	}
	if c.LfrM <= 0 {
		c.LfrM = d.LfrM
	}
	if c.LfrN <= 0 {
		c.LfrN = d.LfrN
	}
	return c
}
