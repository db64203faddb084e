package frontend

import (
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/up-zero/gotool/mediautil"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrTooShort 音频过短, 不足以构成一帧
	ErrTooShort = errors.New("frontend: 音频过短")
	// ErrEmpty 输入为空
	ErrEmpty = errors.New("frontend: 输入为空")
)

// Frontend Paraformer 前端特征提取器
//
// 流程: Wave -> FilterBank -> LFR -> CMVN
type Frontend struct {
	cfg        Config
	window     []float32
	melFilters [][]float32
	negMean    []float32 // CMVN 均值的负数
	invStd     []float32 // CMVN 标准差的倒数
}

// New 创建前端特征提取器
func New(cfg Config) (*Frontend, error) {
	cfg = cfg.withDefaults()
	if cfg.FFTSize < cfg.FrameLength {
		return nil, fmt.Errorf("FFT 点数 %d 小于帧长 %d", cfg.FFTSize, cfg.FrameLength)
	}

	f := &Frontend{
		cfg:        cfg,
		window:     mediautil.HammingWindow(cfg.FrameLength),
		melFilters: mediautil.MelFilters(SampleRate, cfg.FFTSize, cfg.MelBins, 0, 0),
	}
	if cfg.CMVNPath != "" {
		negMean, invStd, err := LoadCMVN(cfg.CMVNPath)
		if err != nil {
			return nil, fmt.Errorf("加载 CMVN 失败: %w", err)
		}
		if len(negMean) != cfg.FeatDim() {
			return nil, fmt.Errorf("CMVN 维度 %d 与特征维度 %d 不一致", len(negMean), cfg.FeatDim())
		}
		f.negMean, f.invStd = negMean, invStd
	}
	return f, nil
}

// FeatDim 输出特征维度
func (f *Frontend) FeatDim() int {
	return f.cfg.FeatDim()
}

// ExtractFile 读取 WAV 文件并提取特征
//
// # Params:
//
//	wavPath: 音频文件路径
func (f *Frontend) ExtractFile(wavPath string) ([]float32, int, error) {
	wavBytes, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, 0, fmt.Errorf("无法读取文件: %w", err)
	}
	return f.ExtractBytes(wavBytes)
}

// ExtractBytes 读取 WAV 字节流并提取特征
func (f *Frontend) ExtractBytes(wavBytes []byte) ([]float32, int, error) {
	samples, err := parseWavBytes(wavBytes)
	if err != nil {
		return nil, 0, fmt.Errorf("无法将 PCM 数据转换为 float32: %w", err)
	}
	return f.Extract(samples)
}

// Extract 对 16kHz 单声道样本提取特征, 返回展平的 [T, D] 数据和帧数 T
//
// # Params:
//
//	samples: 采样率为 16KHz 的单声道音频数据，范围 [-1, 1]
func (f *Frontend) Extract(samples []float32) ([]float32, int, error) {
	if len(samples) == 0 {
		return nil, 0, ErrEmpty
	}

	// 提取 FilterBank
	fBankData, numFrames := f.computeFilterBank(samples)
	if numFrames == 0 {
		return nil, 0, fmt.Errorf("%w: FBank 帧数小于 1", ErrTooShort)
	}

	// 应用 LFR (Low Frame Rate)
	lfrData, lfrFrames := applyLFR(fBankData, numFrames, f.cfg.MelBins, f.cfg.LfrM, f.cfg.LfrN)
	if lfrFrames == 0 {
		return nil, 0, fmt.Errorf("%w: LFR 帧数小于 1", ErrTooShort)
	}

	// CMVN
	if len(f.negMean) > 0 && len(f.invStd) > 0 {
		mediautil.ApplyCMVN(lfrData, f.negMean, f.invStd)
	} else {
		applyUtteranceCMVN(lfrData)
	}

	// 展平为一维数组
	rowSize := f.cfg.FeatDim()
	flattened := make([]float32, lfrFrames*rowSize)
	for i, frame := range lfrData {
		copy(flattened[i*rowSize:], frame)
	}
	return flattened, lfrFrames, nil
}

// computeFilterBank 计算 FilterBank 特征
func (f *Frontend) computeFilterBank(samples []float32) ([][]float32, int) {
	frameLen, frameShift, fftSize, melBins := f.cfg.FrameLength, f.cfg.FrameShift, f.cfg.FFTSize, f.cfg.MelBins

	// 预加重
	emphasized := mediautil.PreEmphasis(samples, preEmphasis)

	numSamples := len(emphasized)
	if numSamples < frameLen {
		return nil, 0
	}
	numFrames := (numSamples-frameLen)/frameShift + 1

	features := make([][]float32, numFrames)
	fftBuffer := make([]complex128, fftSize)

	for i := 0; i < numFrames; i++ {
		start := i * frameShift

		// 加窗 & 填充 FFT buffer
		for j := 0; j < fftSize; j++ {
			if j < frameLen {
				val := emphasized[start+j] * f.window[j]
				fftBuffer[j] = complex(float64(val), 0)
			} else {
				fftBuffer[j] = 0
			}
		}

		spectrum := mediautil.FFT(fftBuffer)

		// 计算 Mel 能量
		features[i] = make([]float32, melBins)
		for k := 0; k < melBins; k++ {
			sum := 0.0
			for j := 0; j < fftSize/2+1; j++ {
				w := f.melFilters[k][j]
				if w > 0 {
					r := real(spectrum[j])
					im := imag(spectrum[j])
					sum += (r*r + im*im) * float64(w)
				}
			}
			if sum < 1e-7 {
				sum = 1e-7
			}
			features[i][k] = float32(math.Log(sum))
		}
	}
	return features, numFrames
}

// applyLFR (Low Frame Rate) 每 lfrN 帧取一次, 拼接 lfrM 帧
func applyLFR(inputs [][]float32, numFrames int, inputDim int, lfrM int, lfrN int) ([][]float32, int) {
	if numFrames < lfrM {
		return nil, 0
	}

	outFrames := (numFrames-lfrM)/lfrN + 1
	outDim := inputDim * lfrM
	output := make([][]float32, outFrames)
	for i := 0; i < outFrames; i++ {
		output[i] = make([]float32, outDim)
		startFrame := i * lfrN
		for j := 0; j < lfrM; j++ {
			copy(output[i][j*inputDim:], inputs[startFrame+j])
		}
	}
	return output, outFrames
}

// applyUtteranceCMVN 无 am.mvn 时按整句均值与标准差归一化
func applyUtteranceCMVN(frames [][]float32) {
	if len(frames) == 0 {
		return
	}
	column := make([]float64, len(frames))
	for d := range frames[0] {
		for i, fr := range frames {
			column[i] = float64(fr[d])
		}
		mean, std := stat.PopMeanStdDev(column, nil)
		for i, fr := range frames {
			fr[d] = float32((column[i] - mean) / (std + 1e-8))
		}
	}
}

// FixLength 将 [frames, dim] 特征调整为固定帧数
//
// 超出部分截断; 不足时重复最后一帧补齐
//
// # Params:
//
//	feats: 展平的特征数据
//	frames: 当前帧数
//	dim: 特征维度
//	target: 目标帧数
func FixLength(feats []float32, frames, dim, target int) ([]float32, error) {
	if frames <= 0 || dim <= 0 || target <= 0 {
		return nil, fmt.Errorf("%w: frames=%d dim=%d target=%d", ErrEmpty, frames, dim, target)
	}
	if len(feats) != frames*dim {
		return nil, fmt.Errorf("特征长度 %d 与 %dx%d 不一致", len(feats), frames, dim)
	}

	out := make([]float32, target*dim)
	if frames >= target {
		copy(out, feats[:target*dim])
		return out, nil
	}
	copy(out, feats)
	last := feats[(frames-1)*dim:]
	for i := frames; i < target; i++ {
		copy(out[i*dim:], last)
	}
	return out, nil
}
