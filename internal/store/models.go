package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (UserModel) TableName() string { return "users" }

type TaskModel struct {
	ID          int64   `gorm:"primaryKey;autoIncrement"`
	Title       string  `gorm:"not null"`
	Description *string `gorm:"type:text"`
	FilePath    *string
	CreatedAt   time.Time `gorm:"not null;index"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (TaskModel) TableName() string { return "tasks" }

// SubmissionModel keeps the ordered blob reference list in a single JSON
// column and enforces one submission per (task, student) pair at the
// storage level.
type SubmissionModel struct {
	ID        int64          `gorm:"primaryKey;autoIncrement"`
	TaskID    int64          `gorm:"not null;uniqueIndex:idx_submissions_task_student"`
	StudentID int64          `gorm:"not null;uniqueIndex:idx_submissions_task_student"`
	FilePaths datatypes.JSON `gorm:"not null"`
	CreatedAt time.Time      `gorm:"not null"`
	UpdatedAt time.Time      `gorm:"not null"`
}

func (SubmissionModel) TableName() string { return "submissions" }
