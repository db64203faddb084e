package smoketest

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/getcharzp/go-speech-hidden/encoder"
	"github.com/getcharzp/go-speech-hidden/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeModel 模拟固定时间维的导出模型: 只接受 fixed 帧, 输出 (batch, hidden, frames)
type fakeModel struct {
	fixed     int
	featDim   int
	hidden    int
	destroyed bool
}

func (f *fakeModel) Inputs() []encoder.TensorInfo {
	return []encoder.TensorInfo{{Name: "feats", Type: "float32", Dims: []int64{-1, -1, int64(f.featDim)}}}
}

func (f *fakeModel) Outputs() []encoder.TensorInfo {
	return []encoder.TensorInfo{{Name: "hidden", Type: "float32", Dims: []int64{-1, int64(f.hidden), -1}}}
}

func (f *fakeModel) EncodeBatch(feats []float32, batch, frames int) (*encoder.Hidden, error) {
	if frames != f.fixed {
		return nil, fmt.Errorf("Attention mask shape mismatch: got %d expected %d", frames, f.fixed)
	}
	data := make([]float32, batch*f.hidden*frames)
	for i := range data {
		data[i] = float32(i%3) - 1 // -1, 0, 1
	}
	return &encoder.Hidden{Shape: []int64{int64(batch), int64(f.hidden), int64(frames)}, Data: data}, nil
}

func (f *fakeModel) Destroy() {
	f.destroyed = true
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T) Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paraformer_hidden.onnx")
	require.NoError(t, os.WriteFile(path, []byte("onnx"), 0o644))
	cfg := DefaultConfig()
	cfg.ModelPath = path
	cfg.ManifestPath = ""
	cfg.FeatDim = 8
	return cfg
}

func TestRun(t *testing.T) {
	cfg := testConfig(t)
	fm := &fakeModel{fixed: 150, featDim: 8, hidden: 4}
	var opened encoder.Config
	report, err := run(cfg, testLogger(), func(ec encoder.Config) (model, error) {
		opened = ec
		return fm, nil
	})
	require.NoError(t, err)
	assert.True(t, fm.destroyed)

	assert.Equal(t, cfg.ModelPath, opened.ModelPath)
	assert.Equal(t, 8, opened.FeatDim)
	assert.Equal(t, 0, opened.FixedFrames)

	assert.Equal(t, int64(4), report.FileSize)
	assert.Equal(t, []int{1, 150, 8}, report.InputShape)
	assert.Equal(t, []int64{1, 4, 150}, report.Output.Shape)
	assert.Equal(t, -1.0, report.Output.Min)
	assert.Equal(t, 1.0, report.Output.Max)
	assert.InDelta(t, 0, report.Output.Mean, 1e-9)

	require.Len(t, report.Probes, 4)
	for _, p := range report.Probes {
		assert.True(t, p.AsExpected(), "frames=%d", p.Frames)
		if p.Frames == 150 {
			assert.NoError(t, p.Err)
		} else {
			assert.Error(t, p.Err)
		}
	}
	assert.Empty(t, report.Unexpected())

	var buf bytes.Buffer
	report.Render(&buf)
	out := buf.String()
	assert.Contains(t, out, "feats")
	assert.Contains(t, out, "[?, 4, ?]")
	assert.Contains(t, out, "min=-1.0000, max=1.0000")
}

func TestRunUnexpectedProbe(t *testing.T) {
	cfg := testConfig(t)
	cfg.ProbeFrames = []int{150}
	cfg.FixedFrames = 150
	fm := &fakeModel{fixed: 150, featDim: 8, hidden: 2}
	report, err := run(cfg, testLogger(), func(encoder.Config) (model, error) { return fm, nil })
	require.NoError(t, err)
	assert.Empty(t, report.Unexpected())

	// 模型接受任意长度时, 非固定长度的探测标记为不符合预期
	report.Probes = append(report.Probes, ProbeResult{Frames: 88, Shape: []int64{1, 2, 88}})
	require.Len(t, report.Unexpected(), 1)
	var buf bytes.Buffer
	report.Render(&buf)
	assert.Contains(t, buf.String(), "ok (!)")
}

func TestRunMissingModel(t *testing.T) {
	cfg := testConfig(t)
	cfg.ModelPath = filepath.Join(t.TempDir(), "missing.onnx")
	called := false
	_, err := run(cfg, testLogger(), func(encoder.Config) (model, error) {
		called = true
		return nil, nil
	})
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, called)
	// 错误携带调用栈
	assert.Contains(t, fmt.Sprintf("%+v", err), "smoketest")
}

func TestRunInferenceFailure(t *testing.T) {
	cfg := testConfig(t)
	fm := &fakeModel{fixed: 100, featDim: 8, hidden: 2}
	report, err := run(cfg, testLogger(), func(encoder.Config) (model, error) { return fm, nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "推理失败")
	assert.True(t, fm.destroyed)
	assert.Len(t, report.Inputs, 1)
	assert.Empty(t, report.Probes)
}

func TestRunUsesManifest(t *testing.T) {
	cfg := testConfig(t)
	cfg.ManifestPath = filepath.Join(t.TempDir(), "paraformer_hidden.manifest.json")
	m := &export.Manifest{FixedFrames: 20, FeatDim: 8, BatchSize: 1}
	require.NoError(t, m.Save(cfg.ManifestPath))

	fm := &fakeModel{fixed: 20, featDim: 8, hidden: 2}
	report, err := run(cfg, testLogger(), func(encoder.Config) (model, error) { return fm, nil })
	require.NoError(t, err)
	assert.Equal(t, []int{1, 20, 8}, report.InputShape)
	assert.Equal(t, 20, report.FixedFrames)
}

func TestRunManifestWithoutFixedFrames(t *testing.T) {
	cfg := testConfig(t)
	cfg.ManifestPath = filepath.Join(t.TempDir(), "paraformer_hidden.manifest.json")
	// 导出命令未报告实际帧数时清单不记录, 使用配置中的帧数
	m := &export.Manifest{FeatDim: 8, HiddenDim: 2}
	require.NoError(t, m.Save(cfg.ManifestPath))

	fm := &fakeModel{fixed: 150, featDim: 8, hidden: 2}
	report, err := run(cfg, testLogger(), func(encoder.Config) (model, error) { return fm, nil })
	require.NoError(t, err)
	assert.Equal(t, 150, report.FixedFrames)
	assert.Empty(t, report.Unexpected())
}
