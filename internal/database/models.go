package database

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User 表示系统中的账号信息。
type User struct {
	gorm.Model
	Name               string   `gorm:"size:128"`
	Email              string   `gorm:"uniqueIndex;size:255"`
	PasswordHash       string   `gorm:"size:255"`
	Plan               string   `gorm:"size:32;default:basic"`
	EmailVerified      bool     `gorm:"default:false"`
	ProfileImageURL    string   `gorm:"size:512"`
	MustChangePassword bool     `gorm:"default:false"`
	Resumes            []Resume `gorm:"constraint:OnDelete:CASCADE"`
}

// Resume 表示用户创建的简历内容。Content 存放完整的文档 JSON。
type Resume struct {
	gorm.Model
	PublicID     string         `gorm:"uniqueIndex;size:36"`
	Title        string         `gorm:"size:255"`
	Content      datatypes.JSON `gorm:"type:jsonb"`
	ThemeID      string         `gorm:"size:8"`
	Thumbnail    string         `gorm:"size:512"`
	PdfObjectKey string         `gorm:"size:512"`
	Status       string         `gorm:"size:32"`
	UserID       uint           `gorm:"index"`
	User         User           `gorm:"constraint:OnDelete:CASCADE"`
}

// 导出状态。
const (
	StatusDraft     = "draft"
	StatusExporting = "exporting"
	StatusExported  = "exported"
	StatusFailed    = "failed"
)

// Payment 记录一次 Razorpay 订单及其校验结果。
type Payment struct {
	gorm.Model
	UserID     uint   `gorm:"index"`
	User       User   `gorm:"constraint:OnDelete:CASCADE"`
	OrderID    string `gorm:"uniqueIndex;size:64"`
	PaymentID  string `gorm:"size:64"`
	Amount     int64
	Currency   string `gorm:"size:8"`
	Plan       string `gorm:"size:32"`
	Status     string `gorm:"size:32;index"`
	VerifiedAt *time.Time
}

const (
	PaymentCreated  = "created"
	PaymentPaid     = "paid"
	PaymentRejected = "rejected"
)

// Asset 记录用户上传到对象存储的图片。
type Asset struct {
	gorm.Model
	UserID      uint   `gorm:"index"`
	ObjectKey   string `gorm:"uniqueIndex;size:512"`
	ContentType string `gorm:"size:64"`
	Size        int64
}

// Models 返回需要 AutoMigrate 的全部模型。
func Models() []any {
	return []any{&User{}, &Resume{}, &Payment{}, &Asset{}}
}
