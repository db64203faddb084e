package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/getcharzp/go-speech-hidden"
	"github.com/getcharzp/go-speech-hidden/encoder"
	"github.com/getcharzp/go-speech-hidden/export"
	"github.com/getcharzp/go-speech-hidden/mask"
	"github.com/getcharzp/go-speech-hidden/smoketest"
	"gopkg.in/yaml.v3"
)

type OnnxConfig struct {
	LibraryPath       string `yaml:"library_path"`
	UseCuda           bool   `yaml:"use_cuda"`
	NumThreads        int    `yaml:"num_threads"`
	EnableCpuMemArena bool   `yaml:"enable_cpu_mem_arena"`
}

type ExportConfig struct {
	ModelDir        string `yaml:"model_dir"`
	OutputDir       string `yaml:"output_dir"`
	ArtifactName    string `yaml:"artifact_name"`
	Command         string `yaml:"command"`
	BatchSize       int    `yaml:"batch_size"`
	FixedFrames     int    `yaml:"fixed_frames"`
	Opset           int    `yaml:"opset"`
	InputName       string `yaml:"input_name"`
	OutputName      string `yaml:"output_name"`
	ConstantFolding bool   `yaml:"constant_folding"`
	Device          string `yaml:"device"`
}

type SmokeConfig struct {
	BatchSize   int   `yaml:"batch_size"`
	FeatDim     int   `yaml:"feat_dim"`
	ProbeFrames []int `yaml:"probe_frames"`
	Seed        int64 `yaml:"seed"`
}

type EncoderConfig struct {
	// FixedFrames <= 0 时按导出清单中的帧数
	FixedFrames int    `yaml:"fixed_frames"`
	CMVNPath    string `yaml:"cmvn_path"`
}

type MaskConfig struct {
	MaxSeqLen int  `yaml:"max_seq_len"`
	Flip      bool `yaml:"flip"`
}

// Config 工具配置, 各部分对应一个子命令
type Config struct {
	LogLevel string        `yaml:"log_level"`
	Onnx     OnnxConfig    `yaml:"onnx"`
	Export   ExportConfig  `yaml:"export"`
	Smoke    SmokeConfig   `yaml:"smoke"`
	Encoder  EncoderConfig `yaml:"encoder"`
	Mask     MaskConfig    `yaml:"mask"`
}

// Default 返回默认配置, 对应 weights/ 下的常见目录结构
func Default() Config {
	ec := export.DefaultConfig()
	sc := smoketest.DefaultConfig()
	return Config{
		LogLevel: "info",
		Onnx: OnnxConfig{
			LibraryPath: speech.DefaultLibraryPath(),
		},
		Export: ExportConfig{
			ModelDir:        ec.ModelDir,
			OutputDir:       ec.OutputDir,
			ArtifactName:    ec.ArtifactName,
			Command:         ec.Command,
			BatchSize:       ec.BatchSize,
			FixedFrames:     ec.FixedFrames,
			Opset:           ec.Opset,
			InputName:       ec.InputName,
			OutputName:      ec.OutputName,
			ConstantFolding: ec.ConstantFolding,
			Device:          ec.Device,
		},
		Smoke: SmokeConfig{
			BatchSize:   sc.BatchSize,
			FeatDim:     sc.FeatDim,
			ProbeFrames: sc.ProbeFrames,
			Seed:        sc.Seed,
		},
		Encoder: EncoderConfig{
			CMVNPath: filepath.Join(ec.ModelDir, "am.mvn"),
		},
		Mask: MaskConfig{
			MaxSeqLen: mask.DefaultMaxSeqLen,
			Flip:      true,
		},
	}
}

// Load 读取 YAML 配置文件, path 为空时返回默认配置
//
// 文件中未出现的字段保留默认值
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.Onnx.NumThreads < 0 {
		return errors.New("onnx.num_threads must be >= 0")
	}
	if cfg.Export.ModelDir == "" {
		return errors.New("export.model_dir must not be empty")
	}
	if cfg.Export.ArtifactName == "" {
		return errors.New("export.artifact_name must not be empty")
	}
	if strings.TrimSpace(cfg.Export.Command) == "" {
		return errors.New("export.command must not be empty")
	}
	if cfg.Export.BatchSize <= 0 {
		return errors.New("export.batch_size must be positive")
	}
	if cfg.Export.FixedFrames <= 0 {
		return errors.New("export.fixed_frames must be positive")
	}
	if cfg.Export.Opset <= 0 {
		return errors.New("export.opset must be positive")
	}
	if cfg.Export.InputName == "" || cfg.Export.OutputName == "" {
		return errors.New("export.input_name and export.output_name must not be empty")
	}
	if cfg.Smoke.BatchSize <= 0 {
		return errors.New("smoke.batch_size must be positive")
	}
	if cfg.Smoke.FeatDim <= 0 {
		return errors.New("smoke.feat_dim must be positive")
	}
	for _, frames := range cfg.Smoke.ProbeFrames {
		if frames <= 0 {
			return fmt.Errorf("smoke.probe_frames must be positive, got %d", frames)
		}
	}
	if cfg.Mask.MaxSeqLen <= 0 {
		return errors.New("mask.max_seq_len must be positive")
	}
	return nil
}

// ParseLevel 解析日志级别: debug | info | warn | error
func ParseLevel(level string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return l, fmt.Errorf("log_level must be one of debug|info|warn|error, got %q", level)
	}
	return l, nil
}

// ExportConfig 转换为导出参数
func (c Config) ExportConfig() export.Config {
	e := c.Export
	return export.Config{
		ModelDir:        e.ModelDir,
		OutputDir:       e.OutputDir,
		ArtifactName:    e.ArtifactName,
		Command:         e.Command,
		BatchSize:       e.BatchSize,
		FixedFrames:     e.FixedFrames,
		Opset:           e.Opset,
		InputName:       e.InputName,
		OutputName:      e.OutputName,
		ConstantFolding: e.ConstantFolding,
		Device:          e.Device,

		OnnxRuntimeLibPath: c.Onnx.LibraryPath,
	}
}

// SmokeConfig 转换为冒烟测试参数, 模型与清单路径取自导出部分
func (c Config) SmokeConfig() smoketest.Config {
	ec := c.ExportConfig()
	return smoketest.Config{
		OnnxRuntimeLibPath: c.Onnx.LibraryPath,
		ModelPath:          ec.ArtifactPath(),
		ManifestPath:       ec.ManifestPath(),
		BatchSize:          c.Smoke.BatchSize,
		FixedFrames:        c.Export.FixedFrames,
		FeatDim:            c.Smoke.FeatDim,
		ProbeFrames:        append([]int(nil), c.Smoke.ProbeFrames...),
		Seed:               c.Smoke.Seed,
		UseCuda:            c.Onnx.UseCuda,
		NumThreads:         c.Onnx.NumThreads,
	}
}

// EncoderConfig 转换为推理引擎参数, 不含音频前端
func (c Config) EncoderConfig() encoder.Config {
	ec := c.ExportConfig()
	cfg := encoder.DefaultConfig()
	cfg.OnnxRuntimeLibPath = c.Onnx.LibraryPath
	cfg.ModelPath = ec.ArtifactPath()
	cfg.InputName = ec.InputName
	cfg.OutputName = ec.OutputName
	cfg.FixedFrames = ec.FixedFrames
	if c.Encoder.FixedFrames > 0 {
		cfg.FixedFrames = c.Encoder.FixedFrames
	}
	cfg.UseCuda = c.Onnx.UseCuda
	cfg.NumThreads = c.Onnx.NumThreads
	cfg.EnableCpuMemArena = c.Onnx.EnableCpuMemArena
	return cfg
}

// PadMask 按配置构建 pad mask
func (c Config) PadMask() *mask.PadMask {
	return mask.NewPadMask(c.Mask.MaxSeqLen, c.Mask.Flip)
}
