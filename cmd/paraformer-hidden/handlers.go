package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/getcharzp/go-speech-hidden/encoder"
	"github.com/getcharzp/go-speech-hidden/export"
	"github.com/getcharzp/go-speech-hidden/frontend"
	"github.com/getcharzp/go-speech-hidden/mask"
	"github.com/getcharzp/go-speech-hidden/smoketest"
	"github.com/spf13/cobra"
	"github.com/up-zero/gotool/fileutil"
)

func (c *cli) exportHandler(cmd *cobra.Command, _ []string) error {
	cfg := c.cfg.ExportConfig()
	if v, _ := cmd.Flags().GetString("model-dir"); v != "" {
		cfg.ModelDir = v
	}
	if v, _ := cmd.Flags().GetString("output-dir"); v != "" {
		cfg.OutputDir = v
	}
	if v, _ := cmd.Flags().GetInt("frames"); v > 0 {
		cfg.FixedFrames = v
	}

	exp, err := export.NewExporter(cfg, c.logger)
	if err != nil {
		return err
	}
	m, err := exp.Export(cmd.Context())
	if err != nil {
		var mfe *export.MissingFileError
		if errors.As(err, &mfe) {
			c.logger.Error("模型文件缺失, 终止导出", slog.String("kind", mfe.Kind), slog.String("path", mfe.Path))
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Exported: %s (%.2f MB)\n", m.Artifact, float64(m.ArtifactSize)/(1024*1024))
	if m.Sidecar != "" {
		fmt.Fprintf(out, "External data: %s (%.2f MB)\n", m.Sidecar, float64(m.SidecarSize)/(1024*1024))
	}
	fmt.Fprintf(out, "Input:  %s [%s]\n", m.Input.Name, strings.Join(m.Input.Dims, ", "))
	fmt.Fprintf(out, "Output: %s [%s]\n", m.Output.Name, strings.Join(m.Output.Dims, ", "))
	fmt.Fprintf(out, "Manifest: %s\n", cfg.ManifestPath())
	return nil
}

func (c *cli) testHandler(cmd *cobra.Command, args []string) error {
	cfg := c.cfg.SmokeConfig()
	if len(args) > 0 {
		cfg.ModelPath = args[0]
		cfg.ManifestPath = export.ManifestPathFor(args[0])
	}
	if cmd.Flags().Changed("probe") {
		cfg.ProbeFrames, _ = cmd.Flags().GetIntSlice("probe")
	}

	report, err := smoketest.Run(cfg, c.logger)
	if report != nil {
		report.Render(cmd.OutOrStdout())
	}
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "%+v\n", err)
		return fmt.Errorf("冒烟测试失败: %w", err)
	}
	if unexpected := report.Unexpected(); len(unexpected) > 0 {
		c.logger.Warn("部分探测结果与预期不一致", slog.Int("count", len(unexpected)))
	}
	return nil
}

func (c *cli) maskHandler(cmd *cobra.Command, _ []string) error {
	ints, _ := cmd.Flags().GetIntSlice("lengths")
	lengths := make([]int32, len(ints))
	for i, l := range ints {
		if l < math.MinInt32 || l > math.MaxInt32 {
			return fmt.Errorf("长度 %d 超出 int32 范围", l)
		}
		lengths[i] = int32(l)
	}

	pm := c.cfg.PadMask()
	if valid, _ := cmd.Flags().GetBool("valid"); valid {
		pm = mask.NewPadMask(pm.MaxSeqLen(), false)
	}
	var opts []mask.PadOption
	if n, _ := cmd.Flags().GetInt("max-len"); n > 0 {
		opts = append(opts, mask.WithMaxLen(n))
	}

	m, err := pm.Make(lengths, opts...)
	if err != nil {
		return err
	}
	printMask(cmd.OutOrStdout(), m)
	return nil
}

// printMask 每个样本输出一行
func printMask(w io.Writer, m *mask.Tensor[float32]) {
	fmt.Fprintf(w, "shape: %v\n", m.Shape)
	width := m.Shape[len(m.Shape)-1]
	if width == 0 {
		return
	}
	for off := 0; off < len(m.Data); off += width {
		row := m.Data[off : off+width]
		parts := make([]string, len(row))
		for i, v := range row {
			parts[i] = fmt.Sprintf("%.0f", v)
		}
		fmt.Fprintf(w, "[%s]\n", strings.Join(parts, " "))
	}
}

func (c *cli) encodeHandler(cmd *cobra.Command, args []string) error {
	cfg := c.cfg.EncoderConfig()
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		cfg.ModelPath = v
	}
	if c.cfg.Encoder.FixedFrames <= 0 {
		if m, err := export.LoadManifest(export.ManifestPathFor(cfg.ModelPath)); err == nil && m.FixedFrames > 0 {
			cfg.FixedFrames = m.FixedFrames
			cfg.FeatDim = m.FeatDim
		}
	}
	fc, err := c.frontendConfig()
	if err != nil {
		return err
	}
	cfg.Frontend = &fc

	engine, err := encoder.NewEngine(cfg)
	if err != nil {
		return err
	}
	defer engine.Destroy()

	hidden, frames, err := engine.EncodeFile(args[0])
	if err != nil {
		return err
	}
	c.logger.Info("推理完成", slog.Int("frames", frames), slog.Any("shape", hidden.Shape))

	if restore, _ := cmd.Flags().GetBool("restore-length"); restore && frames != hidden.Frames() {
		if hidden, err = hidden.Resample(frames); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Utterance frames: %d\nHidden shape: %v\n", frames, hidden.Shape)
	if path, _ := cmd.Flags().GetString("output"); path != "" {
		data, err := json.Marshal(hidden)
		if err != nil {
			return fmt.Errorf("序列化 hidden states 失败: %w", err)
		}
		if err := fileutil.FileSave(path, data); err != nil {
			return fmt.Errorf("保存 hidden states 失败: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s\n", path)
	}
	return nil
}

// frontendConfig 优先使用权重目录中的 config.yaml, 缺失时使用默认前端参数
func (c *cli) frontendConfig() (frontend.Config, error) {
	dir := export.ModelDir{Root: c.cfg.Export.ModelDir}
	cmvn := c.cfg.Encoder.CMVNPath
	if _, err := os.Stat(cmvn); err != nil {
		c.logger.Warn("未找到 am.mvn, 使用整句归一化", slog.String("path", cmvn))
		cmvn = ""
	}
	if _, err := os.Stat(dir.ConfigPath()); err != nil {
		fc := frontend.DefaultConfig()
		fc.CMVNPath = cmvn
		return fc, nil
	}
	mc, err := export.LoadModelConfig(dir.ConfigPath())
	if err != nil {
		return frontend.Config{}, fmt.Errorf("读取 %s 失败: %w", filepath.Base(dir.ConfigPath()), err)
	}
	return mc.FrontendConfig(cmvn), nil
}
