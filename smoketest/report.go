package smoketest

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/getcharzp/go-speech-hidden/encoder"
	"github.com/olekukonko/tablewriter"
)

// OutputSummary 固定形状推理的输出统计
type OutputSummary struct {
	Shape []int64
	Min   float64
	Max   float64
	Mean  float64
}

// ProbeResult 某一帧数的推理结果
type ProbeResult struct {
	Frames        int
	ExpectSuccess bool
	Shape         []int64
	Err           error
}

// AsExpected 结果是否符合预期: 固定帧数成功, 其他帧数失败
func (p ProbeResult) AsExpected() bool {
	return (p.Err == nil) == p.ExpectSuccess
}

// Report 冒烟测试结果
type Report struct {
	ModelPath   string
	FileSize    int64
	Sidecar     string
	FixedFrames int
	Inputs      []encoder.TensorInfo
	Outputs     []encoder.TensorInfo
	InputShape  []int
	Output      OutputSummary
	Probes      []ProbeResult
}

// Unexpected 返回与预期不一致的探测
func (r *Report) Unexpected() []ProbeResult {
	var out []ProbeResult
	for _, p := range r.Probes {
		if !p.AsExpected() {
			out = append(out, p)
		}
	}
	return out
}

// Render 以表格形式输出报告
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Model: %s\n", r.ModelPath)
	fmt.Fprintf(w, "File size: %.2f MB\n", float64(r.FileSize)/(1024*1024))
	if r.Sidecar != "" {
		fmt.Fprintf(w, "External data: %s\n", r.Sidecar)
	}

	if len(r.Inputs) > 0 || len(r.Outputs) > 0 {
		fmt.Fprintln(w)
		table := newTable(w, []string{"KIND", "NAME", "TYPE", "SHAPE"})
		for _, in := range r.Inputs {
			table.Append([]string{"input", in.Name, in.Type, formatDims(in.Dims)})
		}
		for _, out := range r.Outputs {
			table.Append([]string{"output", out.Name, out.Type, formatDims(out.Dims)})
		}
		table.Render()
	}

	if len(r.Output.Shape) > 0 {
		fmt.Fprintf(w, "\nInput shape: %v\n", r.InputShape)
		fmt.Fprintf(w, "Output shape: %v\n", r.Output.Shape)
		fmt.Fprintf(w, "min=%.4f, max=%.4f, mean=%.4f\n", r.Output.Min, r.Output.Max, r.Output.Mean)
	}

	if len(r.Probes) > 0 {
		fmt.Fprintf(w, "\nTime length probes (fixed at %d):\n", r.FixedFrames)
		table := newTable(w, []string{"T", "EXPECTED", "RESULT", "DETAIL"})
		for _, p := range r.Probes {
			expected := "fail"
			if p.ExpectSuccess {
				expected = "ok"
			}
			result, detail := "ok", formatShape(p.Shape)
			if p.Err != nil {
				result, detail = "fail", firstLine(p.Err.Error())
			}
			if !p.AsExpected() {
				result += " (!)"
			}
			table.Append([]string{strconv.Itoa(p.Frames), expected, result, detail})
		}
		table.Render()
	}
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

// formatDims 动态维度显示为 ?
func formatDims(dims []int64) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		if d < 0 {
			parts[i] = "?"
		} else {
			parts[i] = strconv.FormatInt(d, 10)
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatShape(shape []int64) string {
	if shape == nil {
		return ""
	}
	return formatDims(shape)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
