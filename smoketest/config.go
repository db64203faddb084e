package smoketest

import (
	"github.com/getcharzp/go-speech-hidden"
	"github.com/getcharzp/go-speech-hidden/encoder"
)

// Config 冒烟测试参数
type Config struct {
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	ModelPath          string // 导出的 ONNX 文件
	ManifestPath       string // (可选) 导出清单, 存在时以清单中的形状为准

	BatchSize   int   // 虚拟输入 batch
	FixedFrames int   // 导出时固定的帧数
	FeatDim     int   // 特征维度
	ProbeFrames []int // 额外尝试的帧数, 除 FixedFrames 外预期失败
	Seed        int64 // 虚拟输入的随机种子

	UseCuda    bool // (可选) 是否启用 CUDA
	NumThreads int  // (可选) ONNX 线程数
}

// DefaultConfig 返回默认冒烟测试参数
func DefaultConfig() Config {
	return Config{
		OnnxRuntimeLibPath: speech.DefaultLibraryPath(),
		ModelPath:          "./weights/paraformer_hidden.onnx",
		ManifestPath:       "./weights/paraformer_hidden.manifest.json",
		BatchSize:          1,
		FixedFrames:        encoder.DefaultFixedFrames,
		FeatDim:            encoder.DefaultFeatDim,
		ProbeFrames:        []int{88, 100, 150, 200},
		Seed:               1,
	}
}
