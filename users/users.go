package users

import (
	"fmt"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// RoleType is the console role of a registry official.
type RoleType string

const (
	RoleAdmin    RoleType = "Admin"    // Can approve companies and manage users
	RoleReviewer RoleType = "Reviewer" // Reviews MRV reports and credit issuance
	RoleObserver RoleType = "Observer" // Read-only access
)

type User struct {
	ID           string    `json:"id,omitempty"`         // Unique identifier for the user
	UserID       string    `json:"userId,omitempty"`     // Government identifier typed at sign-in
	Name         string    `json:"name,omitempty"`       // Display name
	Email        string    `json:"email,omitempty"`      // Contact address
	Role         RoleType  `json:"role,omitempty"`       // Console role
	Department   string    `json:"department,omitempty"` // Owning department
	PasswordHash string    `json:"-"`                    // Hashed version of the user's password - never serialize
	DateJoined   time.Time `json:"date_joined,omitempty"`
	LastLogin    time.Time `json:"last_login,omitempty"`
	Blocked      bool      `json:"blocked,omitempty"` // Blocked, has the user been blocked from logging in
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a password against the user's stored hash
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}

// DisplayName falls back to the sign-in identifier when no name is set.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.UserID
}
