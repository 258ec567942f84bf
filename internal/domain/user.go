package domain

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

type User struct {
	ID          int64     `db:"id" json:"id"`
	Email       string    `db:"email" json:"email"`
	DisplayName string    `db:"display_name" json:"display_name"`
	IsStaff     bool      `db:"is_staff" json:"is_staff"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// CapitalizeName upper-cases the first letter and lower-cases the rest.
func CapitalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + strings.ToLower(name[size:])
}

const (
	DeviceIOS     = "ios"
	DeviceAndroid = "android"
	DeviceWeb     = "web"
	DeviceDesktop = "desktop"
)

func ValidDeviceType(t string) bool {
	switch t {
	case DeviceIOS, DeviceAndroid, DeviceWeb, DeviceDesktop:
		return true
	}
	return false
}

type Device struct {
	ID         string    `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"-"`
	DeviceType string    `db:"device_type" json:"device_type"`
	DeviceName string    `db:"device_name" json:"device_name"`
	PushToken  string    `db:"push_token" json:"push_token,omitempty"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	LastActive time.Time `db:"last_active" json:"last_active"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
