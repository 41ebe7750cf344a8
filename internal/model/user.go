// Package model defines database models
package model

import "time"

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID           string     `gorm:"primaryKey;size:16" json:"id"`
	Name         string     `gorm:"not null" json:"name"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `json:"-"`                                // Empty for accounts created through Google
	Role         Role       `gorm:"not null;default:user" json:"role"`
	Active       bool       `gorm:"not null" json:"isActive"`
	Verified     bool       `gorm:"not null" json:"isVerified"`
	GoogleID     string     `gorm:"column:google_id;index" json:"-"`
	Avatar       string     `json:"avatar,omitempty"`
	OTP          *string    `gorm:"column:otp" json:"-"`
	OTPExpires   *time.Time `gorm:"column:otp_expires;index" json:"-"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// UserSummary is the public part of an account embedded into other responses
type UserSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar,omitempty"`
}

func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}

	return &UserSummary{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Avatar: u.Avatar,
	}
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
