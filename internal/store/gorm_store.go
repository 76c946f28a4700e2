package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"courseportal/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations. TranslateError is
// enabled so unique-constraint violations surface as gorm.ErrDuplicatedKey.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &TaskModel{}, &SubmissionModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateUser inserts a user row and returns it with its generated ID.
func (s *GormStore) CreateUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.User{}, ErrDuplicateEmail
		}
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CountUsers returns the number of user rows.
func (s *GormStore) CountUsers() (int64, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// CreateTask inserts a task row and returns it with its generated ID.
func (s *GormStore) CreateTask(t domain.Task) (domain.Task, error) {
	model := taskToModel(t)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Task{}, err
	}
	return taskFromModel(model), nil
}

// ListTasks returns all tasks ordered by creation time, newest first.
func (s *GormStore) ListTasks() ([]domain.Task, error) {
	var models []TaskModel
	if err := s.db.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Task, 0, len(models))
	for _, m := range models {
		res = append(res, taskFromModel(m))
	}
	return res, nil
}

// GetTask retrieves a task by ID.
func (s *GormStore) GetTask(id int64) (domain.Task, bool, error) {
	var model TaskModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Task{}, false, nil
		}
		return domain.Task{}, false, err
	}
	return taskFromModel(model), true, nil
}

// UpdateTask replaces the mutable columns of an existing task row.
func (s *GormStore) UpdateTask(t domain.Task) error {
	return s.db.Model(&TaskModel{}).
		Where("id = ?", t.ID).
		Updates(map[string]any{
			"title":       t.Title,
			"description": t.Description,
			"file_path":   t.FilePath,
			"updated_at":  t.UpdatedAt,
		}).Error
}

// DeleteTask removes a task row.
func (s *GormStore) DeleteTask(id int64) error {
	return s.db.Delete(&TaskModel{}, "id = ?", id).Error
}

// CreateSubmission inserts a submission row; a lost race on the
// (task_id, student_id) unique index comes back as ErrDuplicatePair.
func (s *GormStore) CreateSubmission(sub domain.Submission) (domain.Submission, error) {
	model, err := submissionToModel(sub)
	if err != nil {
		return domain.Submission{}, err
	}
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Submission{}, ErrDuplicatePair
		}
		return domain.Submission{}, err
	}
	return submissionFromModel(model)
}

// GetSubmission retrieves the submission for a (task, student) pair.
func (s *GormStore) GetSubmission(taskID, studentID int64) (domain.Submission, bool, error) {
	var model SubmissionModel
	err := s.db.Where("task_id = ? AND student_id = ?", taskID, studentID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Submission{}, false, nil
		}
		return domain.Submission{}, false, err
	}
	sub, err := submissionFromModel(model)
	if err != nil {
		return domain.Submission{}, false, err
	}
	return sub, true, nil
}

// ListSubmissionsByTask returns all submissions for a task with submitter
// name and email joined in.
func (s *GormStore) ListSubmissionsByTask(taskID int64) ([]domain.Submission, error) {
	return s.listSubmissions("task_id = ?", taskID)
}

// ListSubmissionsByTaskAndStudent returns the student's own submissions
// for a task (zero or one).
func (s *GormStore) ListSubmissionsByTaskAndStudent(taskID, studentID int64) ([]domain.Submission, error) {
	return s.listSubmissions("task_id = ? AND student_id = ?", taskID, studentID)
}

func (s *GormStore) listSubmissions(cond string, args ...any) ([]domain.Submission, error) {
	var models []SubmissionModel
	if err := s.db.Where(cond, args...).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Submission, 0, len(models))
	studentIDs := make([]int64, 0, len(models))
	for _, m := range models {
		sub, err := submissionFromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, sub)
		studentIDs = append(studentIDs, m.StudentID)
	}
	if len(studentIDs) == 0 {
		return res, nil
	}
	var users []UserModel
	if err := s.db.Where("id IN ?", studentIDs).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[int64]UserModel, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	for i := range res {
		if u, ok := byID[res[i].StudentID]; ok {
			res[i].StudentName = u.Name
			res[i].StudentEmail = u.Email
		}
	}
	return res, nil
}

// UpdateSubmission replaces the blob reference list of an existing row.
func (s *GormStore) UpdateSubmission(sub domain.Submission) error {
	raw, err := json.Marshal(sub.FilePaths)
	if err != nil {
		return fmt.Errorf("encode file paths: %w", err)
	}
	return s.db.Model(&SubmissionModel{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"file_paths": raw,
			"updated_at": sub.UpdatedAt,
		}).Error
}

// DeleteSubmission removes a submission row by ID.
func (s *GormStore) DeleteSubmission(id int64) error {
	return s.db.Delete(&SubmissionModel{}, "id = ?", id).Error
}

// DeleteSubmissionsByTask removes all submission rows for a task.
func (s *GormStore) DeleteSubmissionsByTask(taskID int64) error {
	return s.db.Delete(&SubmissionModel{}, "task_id = ?", taskID).Error
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func taskToModel(t domain.Task) TaskModel {
	return TaskModel{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		FilePath:    t.FilePath,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func taskFromModel(m TaskModel) domain.Task {
	return domain.Task{
		ID:          m.ID,
		Title:       m.Title,
		Description: m.Description,
		FilePath:    m.FilePath,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func submissionToModel(s domain.Submission) (SubmissionModel, error) {
	raw, err := json.Marshal(s.FilePaths)
	if err != nil {
		return SubmissionModel{}, fmt.Errorf("encode file paths: %w", err)
	}
	return SubmissionModel{
		ID:        s.ID,
		TaskID:    s.TaskID,
		StudentID: s.StudentID,
		FilePaths: raw,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}, nil
}

func submissionFromModel(m SubmissionModel) (domain.Submission, error) {
	var paths []string
	if len(m.FilePaths) > 0 {
		if err := json.Unmarshal(m.FilePaths, &paths); err != nil {
			return domain.Submission{}, fmt.Errorf("decode file paths: %w", err)
		}
	}
	return domain.Submission{
		ID:        m.ID,
		TaskID:    m.TaskID,
		StudentID: m.StudentID,
		FilePaths: paths,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}, nil
}
