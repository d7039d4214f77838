package model

import (
	"errors"
	"strings"
	"time"
	"unicode"
)

// User is a registered campus member. Users own items and borrow from each other.
type User struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Phone        string     `json:"phone,omitempty" db:"phone"`
	CollegeDept  string     `json:"college_dept,omitempty" db:"college_dept"`
	Course       string     `json:"course,omitempty" db:"course"`
	YearLevel    string     `json:"year_level,omitempty" db:"year_level"`
	Role         string     `json:"role" db:"role"`
	Blocked      bool       `json:"blocked" db:"blocked"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// DisplayName returns "First Last", falling back to the email address.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Active reports whether the user may sign in and act.
func (u *User) Active() bool {
	return u.DeletedAt == nil && !u.Blocked
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRole reports whether role is a known role.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleUser:  1,
	}
	return levels[role] > 0 && levels[minimum] > 0 && levels[role] >= levels[minimum]
}

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 8

var commonPasswords = map[string]bool{
	"password":  true,
	"12345678":  true,
	"qwerty":    true,
	"test123":   true,
	"qwerty123": true,
	"password1": true,
}

// ValidatePassword checks a new password against the account rules.
// email may be empty when it is not known.
func ValidatePassword(password, email string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters long")
	}
	if email != "" && strings.EqualFold(password, email) {
		return errors.New("password cannot be the same as your email")
	}
	if strings.IndexFunc(password, func(r rune) bool { return !unicode.IsDigit(r) }) < 0 {
		return errors.New("password cannot be entirely numeric")
	}
	if commonPasswords[strings.ToLower(password)] {
		return errors.New("password is too common")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email is plausibly an address and, when domain is
// non-empty, that it belongs to that domain (e.g. "cit.edu").
func ValidateEmail(email, domain string) error {
	at := strings.LastIndex(email, "@")
	if at < 1 || at == len(email)-1 || strings.ContainsAny(email, " \t\r\n") {
		return errors.New("invalid email address")
	}
	if domain != "" && !strings.EqualFold(email[at+1:], strings.TrimPrefix(domain, "@")) {
		return errors.New("email must be a valid @" + strings.TrimPrefix(domain, "@") + " address")
	}
	return nil
}
