package smoketest

import (
	"log/slog"
	"math/rand"
	"os"

	"github.com/getcharzp/go-speech-hidden/encoder"
	"github.com/getcharzp/go-speech-hidden/export"
	"github.com/pkg/errors"
	"github.com/up-zero/gotool/convertutil"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// model 冒烟测试需要的模型能力, 由 *encoder.Engine 实现
type model interface {
	Inputs() []encoder.TensorInfo
	Outputs() []encoder.TensorInfo
	EncodeBatch(feats []float32, batch, frames int) (*encoder.Hidden, error)
	Destroy()
}

type opener func(cfg encoder.Config) (model, error)

func openEngine(cfg encoder.Config) (model, error) {
	return encoder.NewEngine(cfg)
}

// Run 加载导出的模型, 打印声明的输入输出, 使用固定形状的随机输入推理
//
// 任一步骤失败立即返回, 已完成部分保留在 Report 中; 错误携带调用栈
func Run(cfg Config, logger *slog.Logger) (*Report, error) {
	return run(cfg, logger, openEngine)
}

func run(cfg Config, logger *slog.Logger, open opener) (*Report, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := applyManifest(&cfg, logger); err != nil {
		return nil, err
	}

	report := &Report{ModelPath: cfg.ModelPath, FixedFrames: cfg.FixedFrames}
	info, err := os.Stat(cfg.ModelPath)
	if err != nil {
		return report, errors.Wrap(err, "模型文件不存在")
	}
	report.FileSize = info.Size()
	for _, p := range []string{cfg.ModelPath + "_data", cfg.ModelPath + ".data"} {
		if _, err := os.Stat(p); err == nil {
			report.Sidecar = p
			break
		}
	}
	logger.Info("加载模型", slog.String("path", cfg.ModelPath), slog.Int64("size", report.FileSize))

	ec := encoder.DefaultConfig()
	if err := convertutil.CopyProperties(cfg, &ec); err != nil {
		return report, errors.Wrap(err, "复制参数失败")
	}
	// 冒烟测试按原样送入各个长度, 不做截断或补齐
	ec.FixedFrames = 0
	m, err := open(ec)
	if err != nil {
		return report, errors.Wrap(err, "加载模型失败")
	}
	defer m.Destroy()
	report.Inputs = m.Inputs()
	report.Outputs = m.Outputs()
	logger.Info("模型加载成功", slog.Int("inputs", len(report.Inputs)), slog.Int("outputs", len(report.Outputs)))

	rng := rand.New(rand.NewSource(cfg.Seed))
	report.InputShape = []int{cfg.BatchSize, cfg.FixedFrames, cfg.FeatDim}
	hidden, err := m.EncodeBatch(randomFeats(rng, cfg.BatchSize*cfg.FixedFrames*cfg.FeatDim), cfg.BatchSize, cfg.FixedFrames)
	if err != nil {
		return report, errors.Wrap(err, "推理失败")
	}
	summary, err := summarize(hidden)
	if err != nil {
		return report, err
	}
	report.Output = summary
	logger.Info("推理成功", slog.Any("shape", summary.Shape))

	for _, frames := range cfg.ProbeFrames {
		probe := ProbeResult{Frames: frames, ExpectSuccess: frames == cfg.FixedFrames}
		h, err := m.EncodeBatch(randomFeats(rng, cfg.BatchSize*frames*cfg.FeatDim), cfg.BatchSize, frames)
		if err != nil {
			probe.Err = err
		} else {
			probe.Shape = h.Shape
		}
		if !probe.AsExpected() {
			logger.Warn("探测结果与预期不一致", slog.Int("frames", frames), slog.Bool("expect_success", probe.ExpectSuccess))
		}
		report.Probes = append(report.Probes, probe)
	}
	return report, nil
}

// applyManifest 清单存在时使用其中的形状
func applyManifest(cfg *Config, logger *slog.Logger) error {
	if cfg.ManifestPath == "" {
		return nil
	}
	if _, err := os.Stat(cfg.ManifestPath); os.IsNotExist(err) {
		return nil
	}
	m, err := export.LoadManifest(cfg.ManifestPath)
	if err != nil {
		return errors.WithStack(err)
	}
	if m.FixedFrames > 0 {
		cfg.FixedFrames = m.FixedFrames
	}
	if m.FeatDim > 0 {
		cfg.FeatDim = m.FeatDim
	}
	if m.BatchSize > 0 {
		cfg.BatchSize = m.BatchSize
	}
	logger.Info("使用导出清单", slog.String("export_id", m.ExportID), slog.Int("fixed_frames", cfg.FixedFrames))
	return nil
}

// randomFeats 标准正态分布的虚拟特征
func randomFeats(rng *rand.Rand, n int) []float32 {
	if n < 0 {
		n = 0
	}
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(rng.NormFloat64())
	}
	return out
}

// summarize 统计输出的最小值、最大值和均值
func summarize(h *encoder.Hidden) (OutputSummary, error) {
	if len(h.Data) == 0 {
		return OutputSummary{}, errors.New("模型输出为空")
	}
	values := make([]float64, len(h.Data))
	for i, v := range h.Data {
		values[i] = float64(v)
	}
	return OutputSummary{
		Shape: h.Shape,
		Min:   floats.Min(values),
		Max:   floats.Max(values),
		Mean:  stat.Mean(values, nil),
	}, nil
}
