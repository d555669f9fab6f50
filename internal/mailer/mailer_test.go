package mailer

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeCraft/internal/config"
	"resumeCraft/internal/errcode"
)

func TestBuild_ResumeMessage(t *testing.T) {
	msg := ResumeMessage("hr@example.com", "Application", "Please find attached.", "ada", []byte("%PDF-1.7 test"))
	m, err := build("noreply@example.com", msg)
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = m.WriteTo(&buf)
	require.NoError(t, err)

	raw := buf.String()
	assert.Contains(t, raw, "Subject: Application")
	assert.Contains(t, raw, "hr@example.com")
	assert.Contains(t, raw, `filename="ada.pdf"`)
	assert.Contains(t, raw, "application/pdf")
}

func TestBuild_RejectsBadAddress(t *testing.T) {
	_, err := build("noreply@example.com", Message{To: "not an address"})
	assert.Error(t, err)
}

func TestVerificationMessage(t *testing.T) {
	msg := VerificationMessage("ada@example.com", "", "https://app.example/verify?token=abc")
	assert.Contains(t, msg.Body, "Hi there")
	assert.Contains(t, msg.Body, "token=abc")
	assert.Empty(t, msg.Attachments)
}

func TestNew_DisabledWithoutHost(t *testing.T) {
	s := New(config.SMTPConfig{}, nil)
	err := s.Send(context.Background(), Message{To: "a@example.com"})
	assert.ErrorIs(t, err, errcode.ErrEmailFailed)
}
