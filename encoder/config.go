package encoder

import (
	"github.com/getcharzp/go-speech-hidden"
	"github.com/getcharzp/go-speech-hidden/frontend"
)

const (
	// DefaultInputName 导出模型的输入名
	DefaultInputName = "feats"
	// DefaultOutputName 导出模型的输出名
	DefaultOutputName = "hidden"
	// DefaultFixedFrames 导出时固定的时间维长度
	DefaultFixedFrames = 150
	// DefaultFeatDim LFR 之后的特征维度 (80 * 7)
	DefaultFeatDim = 560
)

// Config 定义 Paraformer hidden 模型的配置参数
type Config struct {
	// 必填参数
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	ModelPath          string // paraformer_hidden.onnx 路径

	// 可选参数
	InputName         string           // 特征输入名, 默认 feats
	OutputName        string           // 输出名, 默认 hidden
	FixedFrames       int              // 固定帧数, <= 0 表示不调整输入长度
	FeatDim           int              // 特征维度, 默认 560
	Frontend          *frontend.Config // (可选) 启用音频前端, 用于 EncodeSamples / EncodeFile
	UseCuda           bool             // (可选) 是否启用 CUDA
	NumThreads        int              // (可选) ONNX 线程数, 默认由CPU核心数决定
	EnableCpuMemArena bool             // (可选) 是否启用内存池
}

// DefaultConfig 返回一套默认的配置 (基于常见的目录结构)
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: speech.DefaultLibraryPath(),
		ModelPath:          "./weights/paraformer_hidden.onnx",
		InputName:          DefaultInputName,
		OutputName:         DefaultOutputName,
		FixedFrames:        DefaultFixedFrames,
		FeatDim:            DefaultFeatDim,
	}
}
