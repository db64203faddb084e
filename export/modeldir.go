package export

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	configFile = "config.yaml"
	modelFile  = "model.pb"
	cmvnFile   = "am.mvn"
)

// MissingFileError 模型目录缺少必需文件
type MissingFileError struct {
	Kind string
	Path string
	Err  error
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("%s 不存在: %s", e.Kind, e.Path)
}

func (e *MissingFileError) Unwrap() error {
	return e.Err
}

// ModelDir 预训练模型目录
type ModelDir struct {
	Root string
}

// ConfigPath config.yaml 路径
func (d ModelDir) ConfigPath() string {
	return filepath.Join(d.Root, configFile)
}

// ModelPath model.pb 路径
func (d ModelDir) ModelPath() string {
	return filepath.Join(d.Root, modelFile)
}

// CMVNPath am.mvn 路径
func (d ModelDir) CMVNPath() string {
	return filepath.Join(d.Root, cmvnFile)
}

// Validate 检查必需文件是否存在, 返回第一个缺失的文件
func (d ModelDir) Validate() error {
	for _, f := range []struct{ kind, path string }{
		{"config", d.ConfigPath()},
		{"model.pb", d.ModelPath()},
		{"cmvn file", d.CMVNPath()},
	} {
		info, err := os.Stat(f.path)
		if err != nil {
			return &MissingFileError{Kind: f.kind, Path: f.path, Err: err}
		}
		if !info.Mode().IsRegular() {
			return &MissingFileError{Kind: f.kind, Path: f.path, Err: fs.ErrNotExist}
		}
	}
	return nil
}
