package export

import (
	"path/filepath"

	"github.com/getcharzp/go-speech-hidden"
)

const (
	// DefaultModelDir 预训练 Paraformer 权重目录
	DefaultModelDir = "./weights/speech_paraformer-large_asr_nat-zh-cn-16k-common-vocab8404-pytorch"
	// DefaultOutputDir 导出目录
	DefaultOutputDir = "./weights"
	// DefaultArtifactName 导出文件名
	DefaultArtifactName = "paraformer_hidden.onnx"
	// DefaultCommand 外部导出命令, 从 stdin 读取 JSON 请求
	DefaultCommand = "python3 export_paraformer_hidden_onnx.py"
	// DefaultOpset ONNX opset 版本
	DefaultOpset = 17
	// DefaultFixedFrames 导出时固定的时间维长度, 注意力掩码按该长度构建
	DefaultFixedFrames = 150
)

// Config 导出参数
type Config struct {
	ModelDir        string // 预训练模型目录, 需包含 config.yaml / model.pb / am.mvn
	OutputDir       string // 导出目录
	ArtifactName    string // 导出文件名
	Command         string // 外部导出命令
	BatchSize       int    // 虚拟输入的 batch
	FixedFrames     int    // 虚拟输入的时间维长度
	Opset           int    // ONNX opset 版本
	InputName       string // 输入名
	OutputName      string // 输出名
	ConstantFolding bool   // 是否开启常量折叠, 默认关闭以保留动态维度
	Device          string // 导出设备

	OnnxRuntimeLibPath string // 用于读回导出文件声明的输入输出
}

// DefaultConfig 返回默认导出参数
func DefaultConfig() Config {
	return Config{
		ModelDir:     DefaultModelDir,
		OutputDir:    DefaultOutputDir,
		ArtifactName: DefaultArtifactName,
		Command:      DefaultCommand,
		BatchSize:    1,
		FixedFrames:  DefaultFixedFrames,
		Opset:        DefaultOpset,
		InputName:    "feats",
		OutputName:   "hidden",
		Device:       "cpu",

		OnnxRuntimeLibPath: speech.DefaultLibraryPath(),
	}
}

// ArtifactPath 导出文件的完整路径
func (c Config) ArtifactPath() string {
	return filepath.Join(c.OutputDir, c.ArtifactName)
}

// ManifestPath 清单文件路径, 与导出文件同目录
func (c Config) ManifestPath() string {
	return ManifestPathFor(c.ArtifactPath())
}
