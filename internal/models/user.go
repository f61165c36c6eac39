package models

import (
	"strings"
	"time"
)

type Role string

const (
	Student Role = "student"
	Teacher Role = "teacher"
)

func (r Role) Valid() bool { return r == Student || r == Teacher }

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// FullName — "Имя Фамилия", при пустом имени — email.
func (u User) FullName() string {
	n := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if n == "" {
		return u.Email
	}
	return n
}

func (u User) IsTeacher() bool { return u.Role == Teacher }
func (u User) IsStudent() bool { return u.Role == Student }
