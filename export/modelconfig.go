package export

import (
	"fmt"
	"os"

	"github.com/getcharzp/go-speech-hidden/frontend"
	"gopkg.in/yaml.v3"
)

// FrontendConf config.yaml 中的 frontend_conf
type FrontendConf struct {
	Fs          int    `yaml:"fs"`
	Window      string `yaml:"window"`
	NMels       int    `yaml:"n_mels"`
	FrameLength int    `yaml:"frame_length"` // 毫秒
	FrameShift  int    `yaml:"frame_shift"`  // 毫秒
	LfrM        int    `yaml:"lfr_m"`
	LfrN        int    `yaml:"lfr_n"`
}

// EncoderConf config.yaml 中的 encoder_conf
type EncoderConf struct {
	OutputSize     int `yaml:"output_size"`
	AttentionHeads int `yaml:"attention_heads"`
	NumBlocks      int `yaml:"num_blocks"`
}

// ModelConfig 预训练模型 config.yaml 中导出需要的部分
type ModelConfig struct {
	Frontend     string       `yaml:"frontend"`
	FrontendConf FrontendConf `yaml:"frontend_conf"`
	Encoder      string       `yaml:"encoder"`
	EncoderConf  EncoderConf  `yaml:"encoder_conf"`
}

// LoadModelConfig 读取 config.yaml, 未出现的字段使用 Paraformer-large 的默认值
func LoadModelConfig(path string) (ModelConfig, error) {
	cfg := ModelConfig{
		Frontend: "wav_frontend",
		FrontendConf: FrontendConf{
			Fs:          16000,
			Window:      "hamming",
			NMels:       80,
			FrameLength: 25,
			FrameShift:  10,
			LfrM:        7,
			LfrN:        6,
		},
		Encoder: "sanm",
		EncoderConf: EncoderConf{
			OutputSize:     512,
			AttentionHeads: 4,
			NumBlocks:      50,
		},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("读取模型配置失败: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("解析模型配置失败: %w", err)
	}
	if cfg.FrontendConf.NMels <= 0 || cfg.FrontendConf.LfrM <= 0 {
		return cfg, fmt.Errorf("非法的 frontend_conf: n_mels=%d lfr_m=%d", cfg.FrontendConf.NMels, cfg.FrontendConf.LfrM)
	}
	return cfg, nil
}

// FeatDim LFR 之后的特征维度
func (c ModelConfig) FeatDim() int {
	return c.FrontendConf.NMels * c.FrontendConf.LfrM
}

// HiddenDim 编码器输出维度
func (c ModelConfig) HiddenDim() int {
	return c.EncoderConf.OutputSize
}

// FrontendConfig 转换为前端特征提取参数, 帧长帧移由毫秒换算为采样点
func (c ModelConfig) FrontendConfig(cmvnPath string) frontend.Config {
	fc := frontend.DefaultConfig()
	fc.CMVNPath = cmvnPath
	fc.MelBins = c.FrontendConf.NMels
	fc.LfrM = c.FrontendConf.LfrM
	if c.FrontendConf.LfrN > 0 {
		fc.LfrN = c.FrontendConf.LfrN
	}
	fs := c.FrontendConf.Fs
	if fs <= 0 {
		fs = frontend.SampleRate
	}
	if c.FrontendConf.FrameLength > 0 {
		fc.FrameLength = c.FrontendConf.FrameLength * fs / 1000
	}
	if c.FrontendConf.FrameShift > 0 {
		fc.FrameShift = c.FrontendConf.FrameShift * fs / 1000
	}
	return fc
}
