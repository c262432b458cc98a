package models

import (
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	ProfilePublic  = "public"
	ProfilePrivate = "private"
)

// BaseUser is the authentication record. The user-facing profile (User) or
// the admin marker (Admin) hangs off it one-to-one depending on Role.
type BaseUser struct {
	gorm.Model
	Email        string `gorm:"column:email;size:255;not null;uniqueIndex" json:"email"`
	PasswordHash string `gorm:"column:password_hash;size:255" json:"-"`
	Role         string `gorm:"column:role;size:20;not null;default:user" json:"role"`
	IsActive     bool   `gorm:"column:is_active;not null;default:true" json:"is_active"`

	User  *User  `gorm:"foreignKey:BaseUserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Admin *Admin `gorm:"foreignKey:BaseUserID;constraint:OnDelete:CASCADE" json:"admin,omitempty"`
	Otp   *Otp   `gorm:"foreignKey:BaseUserID;constraint:OnDelete:CASCADE" json:"-"`
}

type User struct {
	gorm.Model
	BaseUserID  uint   `gorm:"column:base_user_id;not null;uniqueIndex" json:"base_user_id"`
	Username    string `gorm:"column:username;size:30;not null;uniqueIndex" json:"username"`
	Bio         string `gorm:"column:bio;type:text" json:"bio,omitempty"`
	ProfileType string `gorm:"column:profile_type;size:20;not null;default:public" json:"profile_type"`
	ProfileKey  string `gorm:"column:profile_key;size:500" json:"-"`
	IsVerified  bool   `gorm:"column:is_verified;not null;default:false" json:"is_verified"`

	BaseUser *BaseUser `gorm:"foreignKey:BaseUserID" json:"-"`
}

func (u *User) IsPrivate() bool {
	return u.ProfileType == ProfilePrivate
}

// Admin marks a base user with admin rights. It carries no fields of its
// own; authorization decisions use the role claim.
type Admin struct {
	gorm.Model
	BaseUserID uint `gorm:"column:base_user_id;not null;uniqueIndex" json:"base_user_id"`

	BaseUser *BaseUser `gorm:"foreignKey:BaseUserID" json:"-"`
}

// Otp holds the one live password-reset code per identity. Repeat requests
// replace the row; a scheduled job deletes it after the configured TTL.
type Otp struct {
	gorm.Model
	BaseUserID uint   `gorm:"column:base_user_id;not null;uniqueIndex" json:"base_user_id"`
	Code       string `gorm:"column:code;size:6;not null" json:"-"`
}
