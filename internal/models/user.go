// Package models contains data structures for the application's domain models.
package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Wallet providers supported for sign-in and payments.
const (
	WalletTypeMetaMask = "metamask"
	WalletTypePhantom  = "phantom"
)

// User is an account. Wallet-only accounts have no email or password.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Email     *string        `gorm:"uniqueIndex" json:"email,omitempty"`
	Password  string         `json:"-"`
	IsAdmin   bool           `gorm:"not null;default:false" json:"is_admin"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Profile   *Profile       `gorm:"foreignKey:UserID" json:"profile,omitempty"`
}

// HasPassword reports whether the account can sign in with email and password.
func (u *User) HasPassword() bool {
	return u.Password != ""
}

// Profile holds the public, user-editable part of an account.
type Profile struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	Name          string    `gorm:"size:120" json:"name"`
	Bio           string    `gorm:"type:text" json:"bio"`
	LinkedInURL   string    `gorm:"column:linkedin_url;size:255" json:"linkedin_url"`
	Skills        string    `gorm:"type:text" json:"skills"`
	WalletAddress *string   `gorm:"uniqueIndex;size:64" json:"wallet_address,omitempty"`
	WalletType    string    `gorm:"size:16" json:"wallet_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SkillList splits the stored comma-joined skills.
func (p *Profile) SkillList() []string {
	if strings.TrimSpace(p.Skills) == "" {
		return []string{}
	}
	parts := strings.Split(p.Skills, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// SetSkills stores skills comma-joined.
func (p *Profile) SetSkills(skills []string) {
	p.Skills = strings.Join(skills, ", ")
}

// Wallet returns the linked wallet address or "".
func (p *Profile) Wallet() string {
	if p == nil || p.WalletAddress == nil {
		return ""
	}
	return *p.WalletAddress
}
