package model

import (
	"strings"
	"time"
)

// MaxUsernameLen bounds usernames in bytes.
const MaxUsernameLen = 64

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// UsernameProblem describes why name is not an acceptable username, or
// returns "" when it is.
func UsernameProblem(name string) string {
	switch {
	case name == "":
		return "is required"
	case len(name) > MaxUsernameLen:
		return "is too long"
	case strings.ContainsAny(name, " \t\r\n"):
		return "must not contain whitespace"
	}
	return ""
}
