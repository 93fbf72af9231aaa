package models

import (
	"strings"
	"time"
)

// User is an operator account allowed to issue and redeem tickets
type User struct {
	ID           string    `json:"id" db:"id" dynamodbav:"id"`
	Username     string    `json:"username" db:"username" dynamodbav:"username"`
	PasswordHash string    `json:"-" db:"password_hash" dynamodbav:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at" dynamodbav:"created_at"`
}

// UserCreateRequest represents the data needed to create a new user
type UserCreateRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginRequest represents login credentials
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Normalize trims and lowercases the username. Passwords are taken verbatim.
func (req *UserCreateRequest) Normalize() {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
}

func (req *LoginRequest) Normalize() {
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
}
