package users

import "time"

type Role string

const (
	RoleStudent Role = "student"
	RoleStaff   Role = "staff"
	RoleAdmin   Role = "admin"
)

type User struct {
	ID         int64
	FullName   string
	Email      string
	Role       Role
	Department string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
