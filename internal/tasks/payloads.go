package tasks

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// 任务类型常量，确保队列生产者与消费者一致。
const (
	TypePDFGenerate = "pdf:generate"
	TypeEmailSend   = "email:send"

	TypeTemplatePreview = "template:preview"
)

// 邮件种类。
const (
	EmailVerification = "verification"
	EmailResume       = "resume"
)

// PDFGeneratePayload 描述导出一份简历所需的最小信息。
type PDFGeneratePayload struct {
	UserID        uint   `json:"user_id"`
	ResumeID      string `json:"resume_id"`
	CorrelationID string `json:"correlation_id"`
}

// EmailSendPayload 描述一封待发送的邮件。
// Kind 为 resume 时附带 ResumeID 对应的 PDF；ObjectKey 非空时直接读取已导出的对象。
type EmailSendPayload struct {
	Kind          string `json:"kind"`
	UserID        uint   `json:"user_id"`
	To            string `json:"to"`
	Name          string `json:"name,omitempty"`
	Subject       string `json:"subject,omitempty"`
	Body          string `json:"body,omitempty"`
	Link          string `json:"link,omitempty"`
	ResumeID      string `json:"resume_id,omitempty"`
	ObjectKey     string `json:"object_key,omitempty"`
	CorrelationID string `json:"correlation_id"`
}

// NewPDFGenerateTask 构造一个新的简历 PDF 生成任务。
func NewPDFGenerateTask(userID uint, resumeID, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(PDFGeneratePayload{
		UserID:        userID,
		ResumeID:      resumeID,
		CorrelationID: correlationID,
	})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypePDFGenerate, payload, asynq.MaxRetry(3), asynq.Timeout(3*time.Minute)), nil
}

// NewEmailSendTask 构造邮件任务。
func NewEmailSendTask(p EmailSendPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeEmailSend, payload, asynq.MaxRetry(5), asynq.Timeout(2*time.Minute)), nil
}

// TemplatePreviewPayload 描述一次模板缩略图生成。
type TemplatePreviewPayload struct {
	ThemeID       string `json:"theme_id"`
	CorrelationID string `json:"correlation_id"`
}

// NewTemplatePreviewTask 构造模板缩略图任务；同一模板的任务 5 分钟内去重。
func NewTemplatePreviewTask(themeID, correlationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(TemplatePreviewPayload{ThemeID: themeID, CorrelationID: correlationID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeTemplatePreview, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(time.Minute),
		asynq.Unique(5*time.Minute),
	), nil
}
