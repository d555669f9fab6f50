package resume

import "errors"

// 核心编辑/渲染错误：均可恢复，出错时文档保持不变。
var (
	ErrInvalidPath     = errors.New("invalid path")
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrInvalidPalette  = errors.New("invalid palette")
	ErrUnknownTemplate = errors.New("unknown template")
	ErrInvalidValue    = errors.New("invalid value")
)
