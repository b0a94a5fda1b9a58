package models

import (
	"database/sql/driver"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// UserRole is the platform-wide role of an account.
type UserRole string

const (
	UserRoleAdmin     UserRole = "admin"
	UserRoleModerator UserRole = "moderator"
	UserRoleUser      UserRole = "user"
)

// PresenceStatus is the realtime availability of a user.
type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusOffline PresenceStatus = "offline"
	StatusAway    PresenceStatus = "away"
)

// ParsePresenceStatus validates a client-supplied status string.
func ParsePresenceStatus(s string) (PresenceStatus, error) {
	switch PresenceStatus(s) {
	case StatusOnline, StatusOffline, StatusAway:
		return PresenceStatus(s), nil
	}
	return "", validationError("status must be online, offline or away")
}

// User is an account aggregate. Users are never physically deleted.
type User struct {
	ID           int            `db:"id" json:"id"`
	Username     string         `db:"username" json:"username"`
	Email        string         `db:"email" json:"email"`
	PasswordHash string         `db:"password_hash" json:"-"`
	Avatar       string         `db:"avatar" json:"avatar,omitempty"`
	Role         UserRole       `db:"role" json:"role"`
	Status       PresenceStatus `db:"status" json:"status"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

var (
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// NewUser validates registration input and builds an account with the
// default role and offline presence.
func NewUser(username, email, passwordHash, avatar string) (User, error) {
	username = strings.TrimSpace(username)
	email = strings.TrimSpace(strings.ToLower(email))

	if n := utf8.RuneCountInString(username); n < 3 || n > 30 {
		return User{}, validationError("username must be between 3 and 30 characters")
	}
	if !usernameRe.MatchString(username) {
		return User{}, validationError("username may only contain letters, digits, '_', '.' and '-'")
	}
	if !emailRe.MatchString(email) {
		return User{}, validationError("email is not valid")
	}
	if passwordHash == "" {
		return User{}, validationError("password hash is required")
	}

	return User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Avatar:       avatar,
		Role:         UserRoleUser,
		Status:       StatusOffline,
	}, nil
}

func (r UserRole) Value() (driver.Value, error)       { return string(r), nil }
func (s PresenceStatus) Value() (driver.Value, error) { return string(s), nil }

func (r *UserRole) Scan(src any) error {
	*r = UserRole(asString(src))
	return nil
}

func (s *PresenceStatus) Scan(src any) error {
	*s = PresenceStatus(asString(src))
	return nil
}

func asString(src any) string {
	switch v := src.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	}
	return ""
}
