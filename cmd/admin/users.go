package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"resumeCraft/internal/auth"
	"resumeCraft/internal/database"
	"resumeCraft/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if _, _, err := openDB(true); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "database migrated")
		return nil
	},
}

var (
	createUserEmail   string
	createUserName    string
	createUserPremium bool
)

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create a verified account with a one-time password",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := openDB(true)
		if err != nil {
			return err
		}
		password, err := createUser(cmd.Context(), repository.NewUsers(db), createUserEmail, createUserName, createUserPremium)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "已创建账号（首次登录需强制改密）：")
		fmt.Fprintf(out, "邮箱: %s\n", repository.NormalizeEmail(createUserEmail))
		fmt.Fprintf(out, "初始密码: %s\n", password)
		fmt.Fprintln(out, "提示：该密码仅显示一次。")
		return nil
	},
}

var grantPremiumEmail string

var grantPremiumCmd = &cobra.Command{
	Use:   "grant-premium",
	Short: "Unlock premium templates for an account",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := openDB(false)
		if err != nil {
			return err
		}
		if err := grantPremium(cmd.Context(), repository.NewUsers(db), grantPremiumEmail); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now premium\n", repository.NormalizeEmail(grantPremiumEmail))
		return nil
	},
}

func init() {
	createUserCmd.Flags().StringVar(&createUserEmail, "email", "", "账号邮箱（必填）")
	createUserCmd.Flags().StringVar(&createUserName, "name", "", "显示名称")
	createUserCmd.Flags().BoolVar(&createUserPremium, "premium", false, "直接开通 premium")
	grantPremiumCmd.Flags().StringVar(&grantPremiumEmail, "email", "", "账号邮箱（必填）")

	for _, c := range []*cobra.Command{createUserCmd, grantPremiumCmd} {
		if err := c.MarkFlagRequired("email"); err != nil {
			panic(fmt.Sprintf("mark email flag required: %v", err))
		}
	}

	rootCmd.AddCommand(migrateCmd, createUserCmd, grantPremiumCmd)
}

// createUser 创建已验证邮箱、需首次改密的账号，返回明文初始密码。
func createUser(ctx context.Context, users *repository.Users, email, name string, premium bool) (string, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", fmt.Errorf("invalid email %q", email)
	}
	if strings.TrimSpace(name) == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}

	password, err := generateRandomPassword(24)
	if err != nil {
		return "", err
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	plan := auth.PlanBasic
	if premium {
		plan = auth.PlanPremium
	}
	user := database.User{
		Name:               strings.TrimSpace(name),
		Email:              email,
		PasswordHash:       hashed,
		Plan:               plan,
		EmailVerified:      true,
		MustChangePassword: true,
	}
	if err := users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return "", fmt.Errorf("user %q already exists", email)
		}
		return "", err
	}
	return password, nil
}

func grantPremium(ctx context.Context, users *repository.Users, email string) error {
	user, err := users.ByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("user %q not found", repository.NormalizeEmail(email))
		}
		return err
	}
	return users.SetPlan(ctx, user.ID, auth.PlanPremium)
}

func generateRandomPassword(bytesLen int) (string, error) {
	if bytesLen <= 0 {
		bytesLen = 24
	}
	buf := make([]byte, bytesLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
