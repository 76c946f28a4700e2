package domain

import "time"

type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleStudent UserRole = "student"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleStudent
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Task is an assignment published by an admin, with at most one attachment.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	FilePath    *string   `json:"filePath"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Submission is a student's answer to a task. FilePaths is the ordered
// list of blob references, persisted as a single JSON column.
type Submission struct {
	ID           int64     `json:"id"`
	TaskID       int64     `json:"taskId"`
	StudentID    int64     `json:"studentId"`
	StudentName  string    `json:"studentName,omitempty"`
	StudentEmail string    `json:"studentEmail,omitempty"`
	FilePaths    []string  `json:"filePath"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
