package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/hibiken/asynq"

	"resumeCraft/internal/database"
	"resumeCraft/internal/errcode"
	"resumeCraft/internal/mailer"
	"resumeCraft/internal/preview"
	"resumeCraft/internal/render"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/resume"
	"resumeCraft/internal/tasks"
)

type fakeRaster struct {
	jpeg    []byte
	pdf     []byte
	shotErr error
	pdfErr  error
}

func (f *fakeRaster) Screenshot(context.Context, []byte, int, int) ([]byte, error) {
	return f.jpeg, f.shotErr
}

func (f *fakeRaster) PDF(context.Context, []byte) ([]byte, error) {
	return f.pdf, f.pdfErr
}

type fakeResumes struct {
	mu        sync.Mutex
	docs      map[string]resume.Document
	statuses  []string
	objectKey string
	thumbnail string
}

func (f *fakeResumes) Get(_ context.Context, _ uint, id string) (resume.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return resume.Document{}, repository.ErrNotFound
	}
	return d, nil
}

func (f *fakeResumes) SetExport(_ context.Context, _ uint, _ string, status, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	if key != "" {
		f.objectKey = key
	}
	return nil
}

func (f *fakeResumes) SetThumbnail(_ context.Context, _ uint, _ string, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.thumbnail = url
	return nil
}

type fakeObjects struct {
	mu        sync.Mutex
	pdfErr    error
	thumbErr  error
	stored    map[string][]byte
	readCalls int
}

func (f *fakeObjects) UploadPDF(_ context.Context, _ uint, resumeID string, pdf []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pdfErr != nil {
		return "", f.pdfErr
	}
	key := "resumes/1/" + resumeID + ".pdf"
	f.stored[key] = pdf
	return key, nil
}

func (f *fakeObjects) UploadThumbnail(_ context.Context, _ uint, resumeID string, _ []byte) (string, error) {
	if f.thumbErr != nil {
		return "", f.thumbErr
	}
	return "/v1/resumes/" + resumeID + "/thumbnail?v=1", nil
}

func (f *fakeObjects) ReadAll(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readCalls++
	b, ok := f.stored[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return b, nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

func (f *fakeNotifier) Notify(_ context.Context, _ uint, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

type fakeSender struct {
	msgs []mailer.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, m mailer.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

var testPDF = []byte("%PDF-1.7\n%test")

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(raster *fakeRaster) (*fakeResumes, *fakeObjects, *fakeNotifier, *preview.Surface) {
	doc := resume.New("Ada CV")
	doc.ID = "r1"
	doc.Profile.FullName = "Ada Lovelace"
	resumes := &fakeResumes{docs: map[string]resume.Document{"r1": doc}}
	objects := &fakeObjects{stored: map[string][]byte{}}
	surface := preview.NewSurface(render.NewRenderer(discard()), raster, discard())
	return resumes, objects, &fakeNotifier{}, surface
}

func exportTask(t *testing.T, resumeID string) *asynq.Task {
	t.Helper()
	task, err := tasks.NewPDFGenerateTask(1, resumeID, "cid")
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestExportTask_Completes(t *testing.T) {
	resumes, objects, notifier, surface := newFixture(&fakeRaster{jpeg: []byte{0xff, 0xd8}, pdf: testPDF})
	h := NewExportTaskHandler(resumes, objects, surface, nil, notifier, discard(), 0.3)

	if err := h.ProcessTask(context.Background(), exportTask(t, "r1")); err != nil {
		t.Fatalf("process: %v", err)
	}

	if got := resumes.statuses; len(got) != 2 || got[0] != database.StatusExporting || got[1] != database.StatusExported {
		t.Fatalf("unexpected statuses %v", got)
	}
	if resumes.objectKey != "resumes/1/r1.pdf" {
		t.Fatalf("unexpected object key %q", resumes.objectKey)
	}
	if resumes.thumbnail == "" {
		t.Fatalf("expected thumbnail to be refreshed")
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Status != StatusCompleted || notifier.sent[0].Type != NotifyExport {
		t.Fatalf("unexpected notifications %+v", notifier.sent)
	}
}

func TestExportTask_ThumbnailFailureDoesNotFailExport(t *testing.T) {
	resumes, objects, notifier, surface := newFixture(&fakeRaster{shotErr: errors.New("chrome crashed"), pdf: testPDF})
	h := NewExportTaskHandler(resumes, objects, surface, nil, notifier, discard(), 0.3)

	if err := h.ProcessTask(context.Background(), exportTask(t, "r1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	if resumes.thumbnail != "" {
		t.Fatalf("thumbnail should be untouched, got %q", resumes.thumbnail)
	}
	if resumes.objectKey == "" {
		t.Fatalf("pdf should still be stored")
	}
}

func TestExportTask_CaptureFailure(t *testing.T) {
	resumes, objects, notifier, surface := newFixture(&fakeRaster{pdfErr: errors.New("print failed")})
	h := NewExportTaskHandler(resumes, objects, surface, nil, notifier, discard(), 0.3)

	err := h.ProcessTask(context.Background(), exportTask(t, "r1"))
	if !errors.Is(err, errcode.ErrExportFailed) {
		t.Fatalf("expected ErrExportFailed, got %v", err)
	}
	if len(objects.stored) != 0 {
		t.Fatalf("nothing should be uploaded")
	}
}

func TestExportTask_UploadFailure(t *testing.T) {
	resumes, objects, notifier, surface := newFixture(&fakeRaster{pdf: testPDF})
	objects.pdfErr = errors.New("minio down")
	h := NewExportTaskHandler(resumes, objects, surface, nil, notifier, discard(), 0.3)

	err := h.ProcessTask(context.Background(), exportTask(t, "r1"))
	if !errors.Is(err, errcode.ErrUploadFailed) {
		t.Fatalf("expected ErrUploadFailed, got %v", err)
	}
	for _, s := range resumes.statuses {
		if s == database.StatusExported {
			t.Fatalf("must not be marked exported")
		}
	}
}

func TestExportTask_MissingResumeIsSkipped(t *testing.T) {
	resumes, objects, notifier, surface := newFixture(&fakeRaster{pdf: testPDF})
	h := NewExportTaskHandler(resumes, objects, surface, nil, notifier, discard(), 0.3)

	if err := h.ProcessTask(context.Background(), exportTask(t, "gone")); err != nil {
		t.Fatalf("missing resume should be skipped, got %v", err)
	}
	if len(resumes.statuses) != 0 {
		t.Fatalf("unexpected status updates %v", resumes.statuses)
	}
}

func emailTask(t *testing.T, p tasks.EmailSendPayload) *asynq.Task {
	t.Helper()
	task, err := tasks.NewEmailSendTask(p)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestEmailTask_Verification(t *testing.T) {
	resumes, objects, notifier, surface := newFixture(&fakeRaster{})
	sender := &fakeSender{}
	h := NewEmailTaskHandler(sender, resumes, objects, surface, nil, notifier, discard())

	err := h.ProcessTask(context.Background(), emailTask(t, tasks.EmailSendPayload{
		Kind: tasks.EmailVerification, UserID: 1, To: "ada@example.com", Link: "https://app/verify?token=t",
	}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(sender.msgs) != 1 || sender.msgs[0].To != "ada@example.com" {
		t.Fatalf("unexpected messages %+v", sender.msgs)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("verification mail should not notify")
	}
}

func TestEmailTask_ResumeUsesExportedObject(t *testing.T) {
	resumes, objects, notifier, surface := newFixture(&fakeRaster{pdf: []byte("%PDF-fresh")})
	objects.stored["resumes/1/r1.pdf"] = testPDF
	sender := &fakeSender{}
	h := NewEmailTaskHandler(sender, resumes, objects, surface, nil, notifier, discard())

	err := h.ProcessTask(context.Background(), emailTask(t, tasks.EmailSendPayload{
		Kind: tasks.EmailResume, UserID: 1, To: "hr@example.com", Subject: "CV",
		ResumeID: "r1", ObjectKey: "resumes/1/r1.pdf",
	}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	msg := sender.msgs[0]
	if len(msg.Attachments) != 1 || string(msg.Attachments[0].Data) != string(testPDF) {
		t.Fatalf("expected exported pdf attached, got %+v", msg.Attachments)
	}
	if msg.Attachments[0].Name != "Ada CV.pdf" {
		t.Fatalf("unexpected attachment name %q", msg.Attachments[0].Name)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Type != NotifyEmail {
		t.Fatalf("unexpected notifications %+v", notifier.sent)
	}
}

func TestEmailTask_ResumeRendersWhenNotExported(t *testing.T) {
	resumes, objects, notifier, surface := newFixture(&fakeRaster{pdf: []byte("%PDF-fresh")})
	sender := &fakeSender{}
	h := NewEmailTaskHandler(sender, resumes, objects, surface, nil, notifier, discard())

	err := h.ProcessTask(context.Background(), emailTask(t, tasks.EmailSendPayload{
		Kind: tasks.EmailResume, UserID: 1, To: "hr@example.com", ResumeID: "r1",
	}))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if objects.readCalls != 0 {
		t.Fatalf("no object should be read")
	}
	if string(sender.msgs[0].Attachments[0].Data) != "%PDF-fresh" {
		t.Fatalf("expected freshly rendered pdf")
	}
}

func TestEmailTask_SendFailureAndUnknownKind(t *testing.T) {
	resumes, objects, notifier, surface := newFixture(&fakeRaster{})
	sender := &fakeSender{err: errcode.ErrEmailFailed}
	h := NewEmailTaskHandler(sender, resumes, objects, surface, nil, notifier, discard())

	err := h.ProcessTask(context.Background(), emailTask(t, tasks.EmailSendPayload{Kind: tasks.EmailVerification, To: "a@example.com"}))
	if !errors.Is(err, errcode.ErrEmailFailed) {
		t.Fatalf("expected ErrEmailFailed, got %v", err)
	}

	err = h.ProcessTask(context.Background(), emailTask(t, tasks.EmailSendPayload{Kind: "fax"}))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestNotification_JSON(t *testing.T) {
	b, err := json.Marshal(Notification{Type: NotifyExport, Status: StatusCompleted, ResumeID: "r1", CorrelationID: "cid"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	if m["resume_id"] != "r1" || m["status"] != "completed" {
		t.Fatalf("unexpected payload %s", b)
	}
	if NotifyChannel(42) != "user_notify:42" {
		t.Fatalf("unexpected channel %q", NotifyChannel(42))
	}
}

func TestDecodeNotification(t *testing.T) {
	b, _ := json.Marshal(Notification{Type: NotifyEmail, Status: StatusError, ResumeID: "r1", ErrorCode: errcode.EmailFailed})
	n, err := DecodeNotification(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n.Type != NotifyEmail || n.ErrorCode != errcode.EmailFailed {
		t.Fatalf("unexpected notification %+v", n)
	}

	for _, raw := range []string{
		"not json",
		`{"type":"print","status":"completed"}`,
		`{"type":"export","status":"queued"}`,
	} {
		if _, err := DecodeNotification([]byte(raw)); err == nil {
			t.Fatalf("expected error for %s", raw)
		}
	}
}

type dropPhotos struct{}

func (dropPhotos) ForPrint(_ context.Context, _ uint, doc resume.Document) (resume.Document, []string, error) {
	key := doc.Profile.PhotoURL
	doc.Profile.PhotoURL = ""
	return doc, []string{key}, nil
}

func TestExportTask_MissingPhotoReportsResourceMissing(t *testing.T) {
	resumes, objects, notifier, surface := newFixture(&fakeRaster{pdf: testPDF})
	d := resumes.docs["r1"]
	d.Profile.PhotoURL = "user-assets/1/gone.png"
	resumes.docs["r1"] = d
	h := NewExportTaskHandler(resumes, objects, surface, dropPhotos{}, notifier, discard(), 0.3)

	if err := h.ProcessTask(context.Background(), exportTask(t, "r1")); err != nil {
		t.Fatalf("process: %v", err)
	}
	n := notifier.sent[0]
	if n.Status != StatusCompleted || n.ErrorCode != errcode.ResourceMissing {
		t.Fatalf("unexpected notification %+v", n)
	}
	if len(n.MissingKeys) != 1 || n.MissingKeys[0] != "user-assets/1/gone.png" {
		t.Fatalf("unexpected missing keys %v", n.MissingKeys)
	}
}

type fakePreviewStore struct {
	themes []string
	err    error
}

func (f *fakePreviewStore) UploadTemplatePreview(_ context.Context, themeID string, _ []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.themes = append(f.themes, themeID)
	return "templates/" + themeID + "/preview.jpg", nil
}

func previewTask(t *testing.T, themeID string) *asynq.Task {
	t.Helper()
	task, err := tasks.NewTemplatePreviewTask(themeID, "cid")
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	return task
}

func TestTemplatePreview_UploadsEveryTheme(t *testing.T) {
	_, _, _, surface := newFixture(&fakeRaster{jpeg: []byte{0xff, 0xd8}})
	store := &fakePreviewStore{}
	h := NewTemplatePreviewHandler(surface, store, discard(), 0)

	for _, id := range resume.ThemeIDs() {
		if err := h.ProcessTask(context.Background(), previewTask(t, id)); err != nil {
			t.Fatalf("process %s: %v", id, err)
		}
	}
	if len(store.themes) != len(resume.ThemeIDs()) {
		t.Fatalf("uploaded %v", store.themes)
	}
}

func TestTemplatePreview_Failures(t *testing.T) {
	_, _, _, surface := newFixture(&fakeRaster{jpeg: []byte{0xff, 0xd8}})
	store := &fakePreviewStore{}
	h := NewTemplatePreviewHandler(surface, store, discard(), 0.3)

	if err := h.ProcessTask(context.Background(), previewTask(t, "99")); err != nil {
		t.Fatalf("unknown theme should be skipped, got %v", err)
	}
	if len(store.themes) != 0 {
		t.Fatalf("nothing should be uploaded for unknown theme")
	}

	_, _, _, broken := newFixture(&fakeRaster{shotErr: errors.New("no chrome")})
	if err := NewTemplatePreviewHandler(broken, store, discard(), 0.3).ProcessTask(context.Background(), previewTask(t, "01")); err == nil {
		t.Fatalf("empty screenshot should be retried")
	}

	store.err = errors.New("minio down")
	if err := h.ProcessTask(context.Background(), previewTask(t, "01")); err == nil {
		t.Fatalf("upload failure should be returned")
	}

	bad := asynq.NewTask(tasks.TypeTemplatePreview, []byte("{"))
	if err := h.ProcessTask(context.Background(), bad); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload should skip retry, got %v", err)
	}
}

func TestSampleResume_IsValid(t *testing.T) {
	for _, theme := range resume.Themes() {
		if err := sampleResume(theme).Validate(); err != nil {
			t.Fatalf("sample for %s invalid: %v", theme.ID, err)
		}
	}
}
