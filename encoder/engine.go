package encoder

import (
	"errors"
	"fmt"

	"github.com/getcharzp/go-speech-hidden"
	"github.com/getcharzp/go-speech-hidden/frontend"
	"github.com/up-zero/gotool/convertutil"
	ort "github.com/yalue/onnxruntime_go"
)

// ErrNoFrontend 未配置音频前端
var ErrNoFrontend = errors.New("encoder: 未配置音频前端")

// Engine 封装了 Paraformer hidden 模型的 ONNX 运行时
type Engine struct {
	oc      *speech.OnnxConfig
	session *ort.DynamicAdvancedSession
	front   *frontend.Frontend

	io *Binding

	fixedFrames int
	featDim     int
}

// NewEngine 初始化 hidden 模型引擎
//
// 单输入模型只喂 feats; 双输入模型额外按 feats 形状推导 lengths
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("模型路径不能为空")
	}
	if cfg.FeatDim <= 0 {
		cfg.FeatDim = DefaultFeatDim
	}

	oc := new(speech.OnnxConfig)
	if err := convertutil.CopyProperties(cfg, oc); err != nil {
		return nil, fmt.Errorf("复制参数失败: %w", err)
	}
	// 初始化 ONNX
	if err := oc.New(); err != nil {
		return nil, err
	}

	e := &Engine{
		oc:          oc,
		fixedFrames: cfg.FixedFrames,
		featDim:     cfg.FeatDim,
	}
	inputs, outputs, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		oc.Destroy()
		return nil, fmt.Errorf("读取模型输入输出信息失败: %w", err)
	}
	e.io, err = ResolveIO(inputs, outputs, cfg.InputName, cfg.OutputName)
	if err != nil {
		oc.Destroy()
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, e.io.InputNames(), []string{e.io.Hidden.Name}, oc.SessionOptions)
	if err != nil {
		oc.Destroy()
		return nil, fmt.Errorf("创建 ONNX 会话失败: %w", err)
	}
	e.session = session

	if cfg.Frontend != nil {
		front, err := frontend.New(*cfg.Frontend)
		if err != nil {
			e.Destroy()
			return nil, fmt.Errorf("初始化前端失败: %w", err)
		}
		if front.FeatDim() != e.featDim {
			e.Destroy()
			return nil, fmt.Errorf("前端特征维度 %d 与模型特征维度 %d 不一致", front.FeatDim(), e.featDim)
		}
		e.front = front
	}
	return e, nil
}

// Inputs 模型声明的输入
func (e *Engine) Inputs() []TensorInfo {
	return e.io.Inputs
}

// Outputs 模型声明的输出
func (e *Engine) Outputs() []TensorInfo {
	return e.io.Outputs
}

// FixedFrames 固定帧数
func (e *Engine) FixedFrames() int {
	return e.fixedFrames
}

// FeatDim 特征维度
func (e *Engine) FeatDim() int {
	return e.featDim
}

// Destroy 释放相关资源
func (e *Engine) Destroy() {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.oc != nil {
		e.oc.Destroy()
	}
}

// EncodeFile 读取 WAV 文件并输出 hidden states
//
// # Params:
//
//	wavPath: 音频文件路径
func (e *Engine) EncodeFile(wavPath string) (*Hidden, int, error) {
	if e.front == nil {
		return nil, 0, ErrNoFrontend
	}
	feats, frames, err := e.front.ExtractFile(wavPath)
	if err != nil {
		return nil, 0, err
	}
	return e.encodeFeatures(feats, frames)
}

// EncodeSamples 对 float32 音频样本输出 hidden states
//
// 返回值中的 int 为调整长度之前的特征帧数
//
// # Params:
//
//	samples: 采样率为 16KHz 的单声道音频数据，范围 [-1, 1]
func (e *Engine) EncodeSamples(samples []float32) (*Hidden, int, error) {
	if e.front == nil {
		return nil, 0, ErrNoFrontend
	}
	feats, frames, err := e.front.Extract(samples)
	if err != nil {
		return nil, 0, err
	}
	return e.encodeFeatures(feats, frames)
}

func (e *Engine) encodeFeatures(feats []float32, frames int) (*Hidden, int, error) {
	input, inputFrames := feats, frames
	if e.fixedFrames > 0 && frames != e.fixedFrames {
		fixed, err := frontend.FixLength(feats, frames, e.featDim, e.fixedFrames)
		if err != nil {
			return nil, 0, err
		}
		input, inputFrames = fixed, e.fixedFrames
	}
	hidden, err := e.Encode(input, inputFrames)
	if err != nil {
		return nil, 0, err
	}
	return hidden, frames, nil
}

// Encode 对单条 [frames, featDim] 特征执行推理
//
// 不会调整输入长度; 与导出时固定帧数不一致的输入由运行时报错
//
// # Params:
//
//	feats: 展平的特征数据
//	frames: 帧数
func (e *Engine) Encode(feats []float32, frames int) (*Hidden, error) {
	return e.EncodeBatch(feats, 1, frames)
}

// EncodeBatch 对 [batch, frames, featDim] 特征执行推理
func (e *Engine) EncodeBatch(feats []float32, batch, frames int) (*Hidden, error) {
	if batch <= 0 || frames <= 0 || len(feats) != batch*frames*e.featDim {
		return nil, fmt.Errorf("特征长度 %d 与 %dx%dx%d 不一致", len(feats), batch, frames, e.featDim)
	}

	tFeats, err := ort.NewTensor(ort.NewShape(int64(batch), int64(frames), int64(e.featDim)), feats)
	if err != nil {
		return nil, fmt.Errorf("创建 feats tensor 失败: %w", err)
	}
	defer tFeats.Destroy()
	inputs := []ort.Value{tFeats}

	if e.io.Lengths.Name != "" {
		lengths, err := LengthsFromShape(tFeats.GetShape())
		if err != nil {
			return nil, err
		}
		tLen, err := e.lengthsTensor(lengths)
		if err != nil {
			return nil, fmt.Errorf("创建 length tensor 失败: %w", err)
		}
		defer tLen.Destroy()
		inputs = append(inputs, tLen)
	}

	outputs := []ort.Value{nil}
	if err := e.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("推理运行失败: %w", err)
	}
	defer outputs[0].Destroy()

	result, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("推理输出类型断言失败，期望 *Tensor[float32]")
	}

	rawData := result.GetData()
	data := make([]float32, len(rawData))
	copy(data, rawData)
	return &Hidden{
		Shape: append([]int64(nil), result.GetShape()...),
		Data:  data,
	}, nil
}

func (e *Engine) lengthsTensor(lengths []int32) (ort.Value, error) {
	shape := ort.NewShape(int64(len(lengths)))
	if e.io.Lengths64 {
		wide := make([]int64, len(lengths))
		for i, l := range lengths {
			wide[i] = int64(l)
		}
		return ort.NewTensor(shape, wide)
	}
	return ort.NewTensor(shape, lengths)
}
