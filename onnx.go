package speech

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	envOnce sync.Once
	envErr  error
)

// OnnxConfig ONNX 运行时的公共配置
type OnnxConfig struct {
	OnnxRuntimeLibPath string // onnxruntime.dll (或 .so, .dylib) 的路径
	UseCuda            bool   // (可选) 是否启用 CUDA
	NumThreads         int    // (可选) ONNX 线程数, 默认由CPU核心数决定
	EnableCpuMemArena  bool   // (可选) 是否启用内存池

	SessionOptions *ort.SessionOptions
}

// DefaultLibraryPath 返回当前平台下 onnxruntime 动态库的默认路径
func DefaultLibraryPath() string {
	switch runtime.GOOS {
	case "windows":
		return "./lib/onnxruntime.dll"
	case "darwin":
		return "./lib/libonnxruntime.dylib"
	default:
		return "./lib/libonnxruntime.so"
	}
}

// New 初始化 ONNX 运行环境并构建会话选项
//
// 运行环境在进程内只初始化一次, 后续调用只会新建 SessionOptions
func (c *OnnxConfig) New() error {
	if c.OnnxRuntimeLibPath == "" {
		c.OnnxRuntimeLibPath = DefaultLibraryPath()
	}
	envOnce.Do(func() {
		if ort.IsInitialized() {
			return
		}
		ort.SetSharedLibraryPath(c.OnnxRuntimeLibPath)
		envErr = ort.InitializeEnvironment()
	})
	if envErr != nil {
		return fmt.Errorf("初始化 ONNX 运行环境失败: %w", envErr)
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("创建会话选项失败: %w", err)
	}
	if c.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(c.NumThreads); err != nil {
			opts.Destroy()
			return fmt.Errorf("设置线程数失败: %w", err)
		}
	}
	if err := opts.SetCpuMemArena(c.EnableCpuMemArena); err != nil {
		opts.Destroy()
		return fmt.Errorf("设置内存池失败: %w", err)
	}
	if c.UseCuda {
		cudaOpts, err := ort.NewCUDAProviderOptions()
		if err != nil {
			opts.Destroy()
			return fmt.Errorf("创建 CUDA 选项失败: %w", err)
		}
		defer cudaOpts.Destroy()
		if err := opts.AppendExecutionProviderCUDA(cudaOpts); err != nil {
			opts.Destroy()
			return fmt.Errorf("启用 CUDA 失败: %w", err)
		}
	}

	c.SessionOptions = opts
	return nil
}

// Destroy 释放会话选项
func (c *OnnxConfig) Destroy() {
	if c.SessionOptions != nil {
		c.SessionOptions.Destroy()
		c.SessionOptions = nil
	}
}
