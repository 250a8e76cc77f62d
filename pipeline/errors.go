package pipeline

import "fmt"

// 处理阶段，用于错误归类
const (
	StageDecode = "decode"
	StageModel  = "model"
	StageEncode = "encode"
)

// DecodeError 上传字节不是合法图片
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("decode image: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// ModelError 分割模型调用失败或返回了错误尺寸的掩码
type ModelError struct {
	Err error
}

func (e *ModelError) Error() string { return fmt.Sprintf("segmentation model: %v", e.Err) }
func (e *ModelError) Unwrap() error { return e.Err }

// EncodeError 输出序列化失败
type EncodeError struct {
	Err error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("encode image: %v", e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

// FileFailure 批处理中单个文件的失败，不影响其余文件
type FileFailure struct {
	Filename string
	Stage    string
	Err      error
}

func (f *FileFailure) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", f.Filename, f.Stage, f.Err)
}

func (f *FileFailure) Unwrap() error { return f.Err }

// stageOf 从错误类型推断失败阶段
func stageOf(err error) string {
	switch err.(type) {
	case *DecodeError:
		return StageDecode
	case *ModelError:
		return StageModel
	case *EncodeError:
		return StageEncode
	default:
		return StageModel
	}
}
