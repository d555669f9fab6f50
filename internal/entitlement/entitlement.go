// Package entitlement 决定用户可以使用哪些模板。
package entitlement

import (
	"context"
	"fmt"

	"resumeCraft/internal/auth"
	"resumeCraft/internal/editor"
	"resumeCraft/internal/errcode"
	"resumeCraft/internal/resume"
)

// PlanSource 返回用户当前的套餐。令牌中的套餐可能在支付后过期，因此以存储为准。
type PlanSource interface {
	PlanOf(ctx context.Context, userID uint) (string, error)
}

// Catalogue 是模板列表接口的响应体。
type Catalogue struct {
	Available []string `json:"availableTemplates"`
	All       []string `json:"allTemplates"`
	IsPremium bool     `json:"isPremium"`
}

type Service struct {
	plans PlanSource
}

func NewService(plans PlanSource) *Service {
	return &Service{plans: plans}
}

// Allowed 检查 plan 能否使用 themeID。
func Allowed(plan, themeID string) error {
	theme, ok := resume.LookupTheme(themeID)
	if !ok {
		return fmt.Errorf("%w: %q", resume.ErrUnknownTemplate, themeID)
	}
	if theme.Premium && plan != auth.PlanPremium {
		return fmt.Errorf("%w: template %s", errcode.ErrPremiumRequired, themeID)
	}
	return nil
}

// Available 返回 plan 可以使用的模板 ID。
func Available(plan string) []string {
	var out []string
	for _, t := range resume.Themes() {
		if !t.Premium || plan == auth.PlanPremium {
			out = append(out, t.ID)
		}
	}
	return out
}

func (s *Service) plan(ctx context.Context, id auth.Identity) (string, error) {
	if s.plans == nil {
		return id.Plan, nil
	}
	plan, err := s.plans.PlanOf(ctx, id.UserID)
	if err != nil {
		return "", fmt.Errorf("load plan: %w", err)
	}
	return plan, nil
}

func (s *Service) Templates(ctx context.Context, id auth.Identity) (Catalogue, error) {
	plan, err := s.plan(ctx, id)
	if err != nil {
		return Catalogue{}, err
	}
	return Catalogue{
		Available: Available(plan),
		All:       resume.ThemeIDs(),
		IsPremium: plan == auth.PlanPremium,
	}, nil
}

// Check 检查单个模板。
func (s *Service) Check(ctx context.Context, id auth.Identity, themeID string) error {
	plan, err := s.plan(ctx, id)
	if err != nil {
		return err
	}
	return Allowed(plan, themeID)
}

// CheckOps 检查一批编辑中所有的模板切换。未切换模板的批次不查询套餐。
func (s *Service) CheckOps(ctx context.Context, id auth.Identity, ops []editor.Op) error {
	var themes []string
	for _, op := range ops {
		if st, ok := op.(editor.SetTemplateOp); ok {
			themes = append(themes, st.ThemeID)
		}
	}
	if len(themes) == 0 {
		return nil
	}
	plan, err := s.plan(ctx, id)
	if err != nil {
		return err
	}
	for _, t := range themes {
		if err := Allowed(plan, t); err != nil {
			return err
		}
	}
	return nil
}
