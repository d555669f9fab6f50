package mailer

import (
	"fmt"
	"strings"
)

// VerificationMessage 构造邮箱验证邮件。
func VerificationMessage(to, name, link string) Message {
	if strings.TrimSpace(name) == "" {
		name = "there"
	}
	return Message{
		To:      to,
		Subject: "Verify your email",
		Body: fmt.Sprintf("Hi %s,\n\nConfirm your email address to finish setting up your account:\n\n%s\n\nIf you did not sign up, ignore this message.\n",
			name, link),
	}
}

// ResumeMessage 构造附带 PDF 的简历邮件。
func ResumeMessage(to, subject, body, fileName string, pdf []byte) Message {
	if strings.TrimSpace(subject) == "" {
		subject = "Resume"
	}
	if !strings.HasSuffix(strings.ToLower(fileName), ".pdf") {
		fileName += ".pdf"
	}
	return Message{
		To:      to,
		Subject: subject,
		Body:    body,
		Attachments: []Attachment{{
			Name:        fileName,
			ContentType: "application/pdf",
			Data:        pdf,
		}},
	}
}
