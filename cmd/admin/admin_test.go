package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resumeCraft/internal/auth"
	"resumeCraft/internal/database"
	"resumeCraft/internal/preview"
	"resumeCraft/internal/rasterizer"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/resume"
	"resumeCraft/internal/tasks"
)

func newUsers(t *testing.T) *repository.Users {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return repository.NewUsers(db)
}

func TestCreateUser(t *testing.T) {
	users := newUsers(t)
	ctx := context.Background()

	password, err := createUser(ctx, users, " Ops@Example.com ", "", false)
	require.NoError(t, err)
	assert.NotEmpty(t, password)

	u, err := users.ByEmail(ctx, "ops@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ops", u.Name)
	assert.Equal(t, auth.PlanBasic, u.Plan)
	assert.True(t, u.EmailVerified)
	assert.True(t, u.MustChangePassword)
	assert.True(t, auth.CheckPasswordHash(password, u.PasswordHash))

	_, err = createUser(ctx, users, "ops@example.com", "again", false)
	assert.ErrorContains(t, err, "already exists")

	_, err = createUser(ctx, users, "not-an-email", "", false)
	assert.Error(t, err)
}

func TestGrantPremium(t *testing.T) {
	users := newUsers(t)
	ctx := context.Background()

	_, err := createUser(ctx, users, "pay@example.com", "Pay", false)
	require.NoError(t, err)

	require.NoError(t, grantPremium(ctx, users, "PAY@example.com"))
	u, err := users.ByEmail(ctx, "pay@example.com")
	require.NoError(t, err)
	plan, err := users.PlanOf(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, auth.PlanPremium, plan)

	assert.ErrorContains(t, grantPremium(ctx, users, "ghost@example.com"), "not found")
}

func TestExportDocument_HTMLOnly(t *testing.T) {
	doc := resume.New("cv")
	doc.Profile.FullName = "Grace Hopper"
	path := filepath.Join(t.TempDir(), "cv.html")

	surface := preview.NewSurface(nil, rasterizer.Disabled{}, nil)
	require.NoError(t, exportDocument(context.Background(), surface, doc, path, true))

	html, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Grace Hopper")
}

func TestExportDocument_PDFFailureLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cv.pdf")

	surface := preview.NewSurface(nil, rasterizer.Disabled{}, nil)
	err := exportDocument(context.Background(), surface, resume.New("cv"), path, false)
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

type fakeEnqueuer struct {
	types []string
	dup   string
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	var p tasks.TemplatePreviewPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return nil, err
	}
	if p.ThemeID == f.dup {
		return nil, asynq.ErrDuplicateTask
	}
	f.types = append(f.types, task.Type())
	return &asynq.TaskInfo{ID: "t-" + p.ThemeID}, nil
}

func TestEnqueueTemplatePreviews(t *testing.T) {
	q := &fakeEnqueuer{dup: "02"}
	var out bytes.Buffer

	require.NoError(t, enqueueTemplatePreviews(context.Background(), q, &out))
	assert.Equal(t, []string{tasks.TypeTemplatePreview, tasks.TypeTemplatePreview}, q.types)
	assert.Contains(t, out.String(), "template 01: queued t-01")
	assert.Contains(t, out.String(), "template 02: already queued")
}
