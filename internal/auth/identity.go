package auth

import "context"

// 套餐标识，与 users.plan 列一致。
const (
	PlanBasic   = "basic"
	PlanPremium = "premium"
)

// Identity 是已认证调用方的显式身份，沿 context 传给需要它的组件。
type Identity struct {
	UserID uint
	Email  string
	Plan   string
	// MustChangePassword 为 true 时只允许访问改密接口。
	MustChangePassword bool
}

// Premium 报告是否已解锁付费模板。
func (i Identity) Premium() bool {
	return i.Plan == PlanPremium
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok && id.UserID != 0
}
