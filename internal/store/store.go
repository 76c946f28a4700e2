package store

import (
	"errors"

	"courseportal/pkg/domain"
)

// Sentinel errors surfaced by implementations on constraint violations.
var (
	ErrDuplicateEmail = errors.New("email already exists")
	ErrDuplicatePair  = errors.New("submission already exists for task and student")
)

// Store defines persistence operations for users, tasks, and submissions.
// Submissions carry a composite uniqueness guarantee on (taskID, studentID);
// CreateSubmission returns ErrDuplicatePair when that constraint is hit, so
// concurrent duplicate creates cannot both succeed.
type Store interface {
	// users
	CreateUser(u domain.User) (domain.User, error)
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id int64) (domain.User, bool, error)
	CountUsers() (int64, error)

	// tasks
	CreateTask(t domain.Task) (domain.Task, error)
	ListTasks() ([]domain.Task, error)
	GetTask(id int64) (domain.Task, bool, error)
	UpdateTask(t domain.Task) error
	DeleteTask(id int64) error

	// submissions
	CreateSubmission(s domain.Submission) (domain.Submission, error)
	GetSubmission(taskID, studentID int64) (domain.Submission, bool, error)
	ListSubmissionsByTask(taskID int64) ([]domain.Submission, error)
	ListSubmissionsByTaskAndStudent(taskID, studentID int64) ([]domain.Submission, error)
	UpdateSubmission(s domain.Submission) error
	DeleteSubmission(id int64) error
	DeleteSubmissionsByTask(taskID int64) error
}
