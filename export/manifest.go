package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/up-zero/gotool/fileutil"
)

// TensorSpec 导出模型的输入输出声明, 动态维度用符号名表示
type TensorSpec struct {
	Name string   `json:"name"`
	Type string   `json:"type"`
	Dims []string `json:"dims"`
}

// Manifest 导出清单, 与导出文件放在同一目录
type Manifest struct {
	ExportID     string                    `json:"export_id"`
	CreatedAt    time.Time                 `json:"created_at"`
	ModelDir     string                    `json:"model_dir"`
	Artifact     string                    `json:"artifact"`
	ArtifactSize int64                     `json:"artifact_size"`
	Sidecar      string                    `json:"sidecar,omitempty"`
	SidecarSize  int64                     `json:"sidecar_size,omitempty"`
	Opset        int                       `json:"opset,omitempty"`        // 导出命令未报告时为 0
	BatchSize    int                       `json:"batch_size,omitempty"`   // 导出命令未报告时为 0
	FixedFrames  int                       `json:"fixed_frames,omitempty"` // 实际导出的时间维, 未知时为 0
	FeatDim      int                       `json:"feat_dim"`
	HiddenDim    int                       `json:"hidden_dim"`
	Input        TensorSpec                `json:"input"`
	Lengths      *TensorSpec               `json:"lengths,omitempty"`
	Output       TensorSpec                `json:"output"`
	DynamicAxes  map[string]map[int]string `json:"dynamic_axes"`
}

// ManifestPathFor 根据导出文件路径得到清单路径
func ManifestPathFor(artifact string) string {
	return strings.TrimSuffix(artifact, filepath.Ext(artifact)) + ".manifest.json"
}

// Save 写入清单文件
func (m *Manifest) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化清单失败: %w", err)
	}
	if err := fileutil.FileSave(path, data); err != nil {
		return fmt.Errorf("保存清单失败: %w", err)
	}
	return nil
}

// LoadManifest 读取清单文件
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取清单失败: %w", err)
	}
	m := new(Manifest)
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("解析清单失败: %w", err)
	}
	return m, nil
}

// dynamicAxes feats 的 batch/time 维与 hidden 的 batch/time 维声明为动态
func dynamicAxes(inputName, outputName string) map[string]map[int]string {
	return map[string]map[int]string{
		inputName:  {0: "batch", 1: "time"},
		outputName: {0: "batch", 2: "time"},
	}
}

// declaredDims 模型声明的形状, 动态维替换为符号名
func declaredDims(dims []int64, axes map[int]string) []string {
	out := make([]string, len(dims))
	for i, d := range dims {
		switch name, ok := axes[i]; {
		case d >= 0:
			out[i] = strconv.FormatInt(d, 10)
		case ok:
			out[i] = name
		default:
			out[i] = "?"
		}
	}
	return out
}
