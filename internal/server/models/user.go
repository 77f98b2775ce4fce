// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role values for User.Role.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account that can upload files and, when Role is admin, review
// the DLP audit log.
type User struct {
	ID       string
	UserName string
	Role     string

	// Salt and PasswordHash hold the argon2id password verifier material.
	Salt         []byte
	PasswordHash []byte

	CreatedAt time.Time
}
