package errcode

import (
	"errors"

	"resumeCraft/internal/resume"
)

// 错误码约定：
// - 0：无错误
// - 4xxx：编辑期可恢复错误，文档保持不变
// - 5xxx：协作方/系统错误，以可重试的状态呈现给用户
const (
	OK              = 0
	InvalidPath     = 4001
	IndexOutOfRange = 4002
	InvalidPalette  = 4003
	ResourceMissing = 4004
	UnknownTemplate = 4005
	InvalidValue    = 4006
	InFlight        = 4009
	PremiumRequired = 4030
	SystemError     = 5000
	ExportFailed    = 5001
	SaveFailed      = 5002
	UploadFailed    = 5003
	PaymentFailed   = 5004
	RenderFailed    = 5005
	EmailFailed     = 5006
)

// 协作方边界错误，调用处包装底层原因后返回。
var (
	ErrExportFailed  = errors.New("export failed")
	ErrSaveFailed    = errors.New("save failed")
	ErrUploadFailed  = errors.New("upload failed")
	ErrPaymentFailed = errors.New("payment failed")
	ErrRenderFailed  = errors.New("template render failed")
	ErrEmailFailed   = errors.New("email delivery failed")
	ErrInFlight      = errors.New("operation already in flight")

	// ErrPremiumRequired 表示当前套餐不能使用该模板。
	ErrPremiumRequired = errors.New("premium plan required")
)

var table = []struct {
	err  error
	code int
}{
	{resume.ErrInvalidPath, InvalidPath},
	{resume.ErrIndexOutOfRange, IndexOutOfRange},
	{resume.ErrInvalidPalette, InvalidPalette},
	{resume.ErrUnknownTemplate, UnknownTemplate},
	{resume.ErrInvalidValue, InvalidValue},
	{resume.ErrSchema, InvalidValue},
	{ErrInFlight, InFlight},
	{ErrPremiumRequired, PremiumRequired},
	{ErrExportFailed, ExportFailed},
	{ErrSaveFailed, SaveFailed},
	{ErrUploadFailed, UploadFailed},
	{ErrPaymentFailed, PaymentFailed},
	{ErrRenderFailed, RenderFailed},
	{ErrEmailFailed, EmailFailed},
}

// Of 返回 err 对应的错误码；nil 为 OK，未识别的错误为 SystemError。
func Of(err error) int {
	if err == nil {
		return OK
	}
	for _, e := range table {
		if errors.Is(err, e.err) {
			return e.code
		}
	}
	return SystemError
}

// Recoverable 报告 err 是否属于编辑期错误（4xxx）。
func Recoverable(err error) bool {
	c := Of(err)
	return c >= 4000 && c < 5000
}

// Message 返回错误码对应的对外文案，不暴露底层原因。
func Message(code int) string {
	for _, e := range table {
		if e.code == code {
			return e.err.Error()
		}
	}
	return "internal error"
}
