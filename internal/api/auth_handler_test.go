package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resumeCraft/internal/auth"
	"resumeCraft/internal/repository"
	"resumeCraft/internal/tasks"
)

type authFixture struct {
	h     *AuthHandler
	users *repository.Users
	kv    *memKV
	queue *fakeQueue
	svc   *auth.AuthService
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	db := newTestDB(t)
	users := repository.NewUsers(db)
	kv := newMemKV()
	queue := &fakeQueue{}
	svc := newTestAuthService(t)
	h := NewAuthHandler(users, svc, kv, queue, nil, nil, AuthOptions{
		LoginRateLimitPerHour: 100,
		LoginLockThreshold:    3,
		LoginLockTTL:          time.Minute,
		FrontendURL:           "https://app.example.com/",
		RequireVerifiedEmail:  true,
	})
	return &authFixture{h: h, users: users, kv: kv, queue: queue, svc: svc}
}

func (f *authFixture) routes(r *gin.Engine) {
	r.POST("/register", f.h.Register)
	r.POST("/login", f.h.Login)
	r.POST("/refresh", f.h.Refresh)
	r.POST("/logout", f.h.Logout)
	r.POST("/verify-email", f.h.VerifyEmail)
	r.POST("/resend-verification", f.h.ResendVerification)
	r.GET("/profile", f.h.Profile)
}

func (f *authFixture) register(t *testing.T, email string) {
	t.Helper()
	w := serve(t, nil, http.MethodPost, "/register", gin.H{"name": "Ada", "email": email, "password": "correct-horse"}, f.routes)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func (f *authFixture) verificationToken(t *testing.T) string {
	t.Helper()
	sent := f.queue.byType(tasks.TypeEmailSend)
	require.NotEmpty(t, sent)
	var p tasks.EmailSendPayload
	require.NoError(t, json.Unmarshal(sent[len(sent)-1].Payload(), &p))
	assert.Equal(t, tasks.EmailVerification, p.Kind)
	link, err := url.Parse(p.Link)
	require.NoError(t, err)
	assert.Equal(t, "/verify-email", link.Path)
	return link.Query().Get("token")
}

func TestRegister_EnqueuesVerification(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, " Ada@Example.com ")

	user, err := f.users.ByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.False(t, user.EmailVerified)
	assert.Equal(t, auth.PlanBasic, user.Plan)

	token := f.verificationToken(t)
	assert.True(t, f.kv.has(verifyTokenKeyPrefix+token))

	w := serve(t, nil, http.MethodPost, "/register", gin.H{"name": "Ada", "email": "ada@example.com", "password": "correct-horse"}, f.routes)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLogin_RequiresVerifiedEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com")
	creds := gin.H{"email": "ada@example.com", "password": "correct-horse"}

	w := serve(t, nil, http.MethodPost, "/login", creds, f.routes)
	assert.Equal(t, http.StatusForbidden, w.Code)

	token := f.verificationToken(t)
	w = serve(t, nil, http.MethodPost, "/verify-email", gin.H{"token": token}, f.routes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// 令牌只能使用一次。
	w = serve(t, nil, http.MethodPost, "/verify-email", gin.H{"token": token}, f.routes)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(t, nil, http.MethodPost, "/login", creds, f.routes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.True(t, resp.User.EmailVerified)

	id, err := f.svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, id.UserID)
	assert.Equal(t, auth.PlanBasic, id.Plan)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, refreshTokenCookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
}

func TestLogin_LocksAfterRepeatedFailures(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com")
	bad := gin.H{"email": "ada@example.com", "password": "wrong-password"}

	for i := 0; i < 3; i++ {
		w := serve(t, nil, http.MethodPost, "/login", bad, f.routes)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := serve(t, nil, http.MethodPost, "/login", gin.H{"email": "ada@example.com", "password": "correct-horse"}, f.routes)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRefresh_RotatesToken(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com")
	user, err := f.users.ByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.NoError(t, f.users.SetPlan(context.Background(), user.ID, auth.PlanPremium))

	pair, err := f.svc.GenerateTokenPair(auth.Identity{UserID: user.ID, Plan: auth.PlanBasic})
	require.NoError(t, err)

	w := serve(t, nil, http.MethodPost, "/refresh", gin.H{"refresh_token": pair.RefreshToken}, f.routes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp tokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	id, err := f.svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, auth.PlanPremium, id.Plan, "plan is reloaded on refresh")

	w = serve(t, nil, http.MethodPost, "/refresh", gin.H{"refresh_token": pair.RefreshToken}, f.routes)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = serve(t, nil, http.MethodPost, "/refresh", gin.H{"refresh_token": pair.AccessToken}, f.routes)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogout_RevokesRefreshToken(t *testing.T) {
	f := newAuthFixture(t)
	pair, err := f.svc.GenerateTokenPair(auth.Identity{UserID: 1})
	require.NoError(t, err)

	w := serve(t, nil, http.MethodPost, "/logout", gin.H{"refresh_token": pair.RefreshToken}, f.routes)
	require.Equal(t, http.StatusOK, w.Code)

	w = serve(t, nil, http.MethodPost, "/refresh", gin.H{"refresh_token": pair.RefreshToken}, f.routes)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResendVerification_DoesNotRevealAccounts(t *testing.T) {
	f := newAuthFixture(t)

	w := serve(t, nil, http.MethodPost, "/resend-verification", gin.H{"email": "nobody@example.com"}, f.routes)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Empty(t, f.queue.byType(tasks.TypeEmailSend))

	f.register(t, "ada@example.com")
	w = serve(t, nil, http.MethodPost, "/resend-verification", gin.H{"email": "ada@example.com"}, f.routes)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, f.queue.byType(tasks.TypeEmailSend), 2)
}

func TestProfile(t *testing.T) {
	f := newAuthFixture(t)
	f.register(t, "ada@example.com")
	user, err := f.users.ByEmail(context.Background(), "ada@example.com")
	require.NoError(t, err)

	w := serve(t, identityFor(user.ID), http.MethodGet, "/profile", nil, f.routes)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Ada", body["name"])
	assert.Equal(t, "basic", body["subscriptionPlan"])

	w = serve(t, nil, http.MethodGet, "/profile", nil, f.routes)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
