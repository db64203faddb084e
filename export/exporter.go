package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/getcharzp/go-speech-hidden"
	"github.com/getcharzp/go-speech-hidden/encoder"
	"github.com/google/uuid"
	"github.com/mattn/go-shellwords"
	ort "github.com/yalue/onnxruntime_go"
)

var (
	// ErrEmptyArtifact 导出命令结束后文件为空
	ErrEmptyArtifact = errors.New("export: 导出文件为空")
	// ErrExporterFailed 导出命令报告失败
	ErrExporterFailed = errors.New("export: 导出命令执行失败")
	// ErrArtifactMismatch 导出文件与请求不一致
	ErrArtifactMismatch = errors.New("export: 导出文件与请求不一致")
)

// Request 写入导出命令 stdin 的 JSON 请求
type Request struct {
	ConfigPath        string                    `json:"config_path"`
	ModelPath         string                    `json:"model_path"`
	CMVNPath          string                    `json:"cmvn_path"`
	OutputPath        string                    `json:"output_path"`
	InputNames        []string                  `json:"input_names"`
	OutputNames       []string                  `json:"output_names"`
	FeatsShape        []int                     `json:"feats_shape"`
	DynamicAxes       map[string]map[int]string `json:"dynamic_axes"`
	OpsetVersion      int                       `json:"opset_version"`
	DoConstantFolding bool                      `json:"do_constant_folding"`
	Device            string                    `json:"device"`
}

// Applied 导出命令实际使用的参数, 可能与请求不同
type Applied struct {
	FeatsShape   []int `json:"feats_shape"`
	OpsetVersion int   `json:"opset_version"`
}

// progress 导出命令在 stdout 输出的 JSON 行
type progress struct {
	Message string   `json:"message"`
	Error   string   `json:"error"`
	Applied *Applied `json:"applied"`
}

// inspector 读取导出文件声明的输入输出
type inspector func(artifact string) (inputs, outputs []ort.InputOutputInfo, err error)

// Exporter 调用外部导出工具链, 将 Paraformer 编码器导出为 ONNX
//
// 导出命令从 stdin 读取 Request, 可以忽略; 若在 stdout 输出 {"applied": ...},
// 清单中的帧数与 opset 以其为准, 否则不记录
type Exporter struct {
	cfg     Config
	cmd     []string
	logger  *slog.Logger
	inspect inspector
}

// NewExporter 创建导出器
func NewExporter(cfg Config, logger *slog.Logger) (*Exporter, error) {
	if logger == nil {
		logger = slog.Default()
	}
	args, err := shellwords.NewParser().Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("解析导出命令失败: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("导出命令为空")
	}
	if cfg.BatchSize <= 0 || cfg.FixedFrames <= 0 {
		return nil, fmt.Errorf("非法的虚拟输入形状: batch=%d frames=%d", cfg.BatchSize, cfg.FixedFrames)
	}
	e := &Exporter{cfg: cfg, cmd: args, logger: logger}
	e.inspect = e.inspectArtifact
	return e, nil
}

// Export 执行导出
//
// 模型目录缺少文件时立即返回 *MissingFileError, 不会调用导出命令
func (e *Exporter) Export(ctx context.Context) (*Manifest, error) {
	dir := ModelDir{Root: e.cfg.ModelDir}
	if err := dir.Validate(); err != nil {
		return nil, err
	}

	e.logger.Info("加载 Paraformer 模型配置", slog.String("config", dir.ConfigPath()))
	modelCfg, err := LoadModelConfig(dir.ConfigPath())
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建导出目录失败: %w", err)
	}

	artifact := e.cfg.ArtifactPath()
	axes := dynamicAxes(e.cfg.InputName, e.cfg.OutputName)
	req := Request{
		ConfigPath:        dir.ConfigPath(),
		ModelPath:         dir.ModelPath(),
		CMVNPath:          dir.CMVNPath(),
		OutputPath:        artifact,
		InputNames:        []string{e.cfg.InputName},
		OutputNames:       []string{e.cfg.OutputName},
		FeatsShape:        []int{e.cfg.BatchSize, e.cfg.FixedFrames, modelCfg.FeatDim()},
		DynamicAxes:       axes,
		OpsetVersion:      e.cfg.Opset,
		DoConstantFolding: e.cfg.ConstantFolding,
		Device:            e.cfg.Device,
	}

	e.logger.Info("导出 ONNX",
		slog.String("output", artifact),
		slog.Any("feats_shape", req.FeatsShape),
		slog.Int("opset", req.OpsetVersion))
	applied, err := e.run(ctx, req)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(artifact)
	if err != nil {
		return nil, fmt.Errorf("导出文件不存在: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyArtifact, artifact)
	}

	inputs, outputs, err := e.inspect(artifact)
	if err != nil {
		return nil, fmt.Errorf("读取导出文件输入输出失败: %w", err)
	}
	b, err := encoder.ResolveIO(inputs, outputs, e.cfg.InputName, e.cfg.OutputName)
	if err != nil {
		return nil, err
	}
	m := &Manifest{
		ExportID:     uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		ModelDir:     e.cfg.ModelDir,
		Artifact:     artifact,
		ArtifactSize: info.Size(),
		FeatDim:      modelCfg.FeatDim(),
		HiddenDim:    modelCfg.HiddenDim(),
		Input:        TensorSpec{Name: b.Feats.Name, Type: b.Feats.Type, Dims: declaredDims(b.Feats.Dims, axes[e.cfg.InputName])},
		Output:       TensorSpec{Name: b.Hidden.Name, Type: b.Hidden.Type, Dims: declaredDims(b.Hidden.Dims, axes[e.cfg.OutputName])},
		DynamicAxes:  axes,
	}
	if b.Lengths.Name != "" {
		m.Lengths = &TensorSpec{Name: b.Lengths.Name, Type: b.Lengths.Type, Dims: declaredDims(b.Lengths.Dims, nil)}
	}
	if err := e.check(m, b, applied); err != nil {
		return nil, err
	}

	if sidecar, size, ok := findSidecar(artifact); ok {
		m.Sidecar, m.SidecarSize = sidecar, size
		e.logger.Info("权重保存在外部数据文件", slog.String("sidecar", sidecar))
	}
	if err := m.Save(e.cfg.ManifestPath()); err != nil {
		return nil, err
	}

	e.logger.Info("导出完成", slog.String("output", artifact), slog.Int64("size", info.Size()))
	if m.FixedFrames > 0 {
		e.logger.Warn("模型以固定时间维导出, 其他长度的输入会在推理时报错, 前端需截断或补齐",
			slog.Int("fixed_frames", m.FixedFrames))
	} else {
		e.logger.Warn("导出命令未报告实际参数, 清单不记录固定帧数与 opset",
			slog.Int("requested_frames", e.cfg.FixedFrames))
	}
	return m, nil
}

// check 校验导出文件声明的输入输出, 并记录确认过的形状
func (e *Exporter) check(m *Manifest, b *encoder.Binding, applied *Applied) error {
	if b.Feats.Name != e.cfg.InputName {
		return fmt.Errorf("%w: 输入名 %q, 期望 %q", ErrArtifactMismatch, b.Feats.Name, e.cfg.InputName)
	}
	if b.Hidden.Name != e.cfg.OutputName {
		return fmt.Errorf("%w: 输出名 %q, 期望 %q", ErrArtifactMismatch, b.Hidden.Name, e.cfg.OutputName)
	}
	feats, hidden := b.Feats.Dims, b.Hidden.Dims
	if len(feats) != 3 || len(hidden) != 3 {
		return fmt.Errorf("%w: 输入形状 %v, 输出形状 %v, 期望三维", ErrArtifactMismatch, feats, hidden)
	}
	if feats[2] >= 0 && int(feats[2]) != m.FeatDim {
		return fmt.Errorf("%w: 特征维度 %d, 期望 %d", ErrArtifactMismatch, feats[2], m.FeatDim)
	}
	if hidden[1] >= 0 && int(hidden[1]) != m.HiddenDim {
		return fmt.Errorf("%w: hidden 维度 %d, 期望 %d", ErrArtifactMismatch, hidden[1], m.HiddenDim)
	}

	// 声明为静态的时间维即为实际导出的帧数
	if feats[1] > 0 {
		m.FixedFrames = int(feats[1])
	}
	if feats[0] > 0 {
		m.BatchSize = int(feats[0])
	}
	if applied != nil {
		if len(applied.FeatsShape) != 3 {
			return fmt.Errorf("%w: 导出命令报告的形状 %v", ErrArtifactMismatch, applied.FeatsShape)
		}
		if applied.FeatsShape[2] != m.FeatDim {
			return fmt.Errorf("%w: 导出命令使用的特征维度 %d, 期望 %d", ErrArtifactMismatch, applied.FeatsShape[2], m.FeatDim)
		}
		if m.FixedFrames > 0 && m.FixedFrames != applied.FeatsShape[1] {
			return fmt.Errorf("%w: 导出命令报告帧数 %d, 模型声明 %d", ErrArtifactMismatch, applied.FeatsShape[1], m.FixedFrames)
		}
		m.BatchSize = applied.FeatsShape[0]
		m.FixedFrames = applied.FeatsShape[1]
		m.Opset = applied.OpsetVersion
	}
	if m.FixedFrames > 0 && m.FixedFrames != e.cfg.FixedFrames {
		return fmt.Errorf("%w: 实际导出帧数 %d, 请求 %d", ErrArtifactMismatch, m.FixedFrames, e.cfg.FixedFrames)
	}
	return nil
}

// inspectArtifact 通过 onnxruntime 读取导出文件声明的输入输出
func (e *Exporter) inspectArtifact(artifact string) ([]ort.InputOutputInfo, []ort.InputOutputInfo, error) {
	oc := &speech.OnnxConfig{OnnxRuntimeLibPath: e.cfg.OnnxRuntimeLibPath}
	if err := oc.New(); err != nil {
		return nil, nil, err
	}
	defer oc.Destroy()
	return ort.GetInputOutputInfo(artifact)
}

// run 启动导出命令, stdin 写入请求, 逐行读取 stdout
func (e *Exporter) run(ctx context.Context, req Request) (*Applied, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("启动导出命令失败: %w", err)
	}

	var (
		reported string
		applied  *Applied
	)
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var p progress
		if err := json.Unmarshal(line, &p); err != nil {
			e.logger.Info(string(line))
			continue
		}
		if p.Error != "" {
			reported = p.Error
			e.logger.Error("导出命令报错", slog.String("error", p.Error))
			continue
		}
		if p.Applied != nil {
			applied = p.Applied
			e.logger.Info("导出命令报告实际参数",
				slog.Any("feats_shape", applied.FeatsShape),
				slog.Int("opset", applied.OpsetVersion))
		}
		if p.Message != "" {
			e.logger.Info(p.Message)
		}
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		detail := reported
		if detail == "" {
			detail = strings.TrimSpace(stderr.String())
		}
		return nil, fmt.Errorf("%w: %v: %s", ErrExporterFailed, err, detail)
	}
	if reported != "" {
		return nil, fmt.Errorf("%w: %s", ErrExporterFailed, reported)
	}
	return applied, scanErr
}

// findSidecar 查找超过 2GB 时写出的外部权重文件
func findSidecar(artifact string) (string, int64, bool) {
	for _, p := range []string{artifact + "_data", artifact + ".data"} {
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, info.Size(), true
		}
	}
	return "", 0, false
}
