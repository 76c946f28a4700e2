package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"courseportal/internal/storage"
	"courseportal/pkg/domain"
)

// Upload is a received file pending persistence into the blob store.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Reader      io.Reader
}

// TaskDetail is a task joined with the requester-visible submissions.
type TaskDetail struct {
	domain.Task
	Submissions []domain.Submission `json:"submissions"`
}

// CreateTaskInput carries the fields of a task creation. File is optional.
type CreateTaskInput struct {
	Title       string
	Description *string
	File        *Upload
}

// UpdateTaskInput carries a partial task update. An empty Title and a nil
// Description keep the existing values; File replaces the attachment only
// when present.
type UpdateTaskInput struct {
	Title       string
	Description *string
	File        *Upload
}

// ListTasks returns all tasks, newest first.
func (a *App) ListTasks() ([]domain.Task, error) {
	tasks, err := a.store.ListTasks()
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

// GetTask returns a task together with the submissions the requester may
// see: admins see all, students only their own.
func (a *App) GetTask(id int64, requester domain.User) (TaskDetail, error) {
	task, ok, err := a.store.GetTask(id)
	if err != nil {
		return TaskDetail{}, fmt.Errorf("get task: %w", err)
	}
	if !ok {
		return TaskDetail{}, ErrTaskNotFound
	}
	subs, err := a.ListSubmissions(id, requester)
	if err != nil {
		return TaskDetail{}, err
	}
	return TaskDetail{Task: task, Submissions: subs}, nil
}

// CreateTask publishes a new task. The attachment, when present, is written
// to the blob store before the row insert; a failed insert deletes the
// just-written blob so no orphan survives.
func (a *App) CreateTask(ctx context.Context, in CreateTaskInput) (domain.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Task{}, Validation("title is required")
	}

	var filePath *string
	if in.File != nil {
		ref, err := a.blobs.Put(ctx, storage.BucketTasks, in.File.Name, in.File.Reader, in.File.Size, in.File.ContentType)
		if err != nil {
			return domain.Task{}, fmt.Errorf("store task file: %w", err)
		}
		filePath = &ref
	}

	now := time.Now().UTC()
	task, err := a.store.CreateTask(domain.Task{
		Title:       title,
		Description: in.Description,
		FilePath:    filePath,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		if filePath != nil {
			a.removeBlob(ctx, *filePath)
		}
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	return task, nil
}

// UpdateTask applies a field-level partial update. An empty title keeps the
// existing one; the attachment is replaced only when a new file accompanies
// the edit, deleting the superseded blob first.
func (a *App) UpdateTask(ctx context.Context, id int64, in UpdateTaskInput) (domain.Task, error) {
	task, ok, err := a.store.GetTask(id)
	if err != nil {
		return domain.Task{}, fmt.Errorf("get task: %w", err)
	}
	if !ok {
		return domain.Task{}, ErrTaskNotFound
	}

	if title := strings.TrimSpace(in.Title); title != "" {
		task.Title = title
	}
	if in.Description != nil {
		task.Description = in.Description
	}

	var newRef string
	if in.File != nil {
		if task.FilePath != nil {
			a.removeBlob(ctx, *task.FilePath)
		}
		newRef, err = a.blobs.Put(ctx, storage.BucketTasks, in.File.Name, in.File.Reader, in.File.Size, in.File.ContentType)
		if err != nil {
			return domain.Task{}, fmt.Errorf("store task file: %w", err)
		}
		task.FilePath = &newRef
	}

	task.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateTask(task); err != nil {
		if newRef != "" {
			a.removeBlob(ctx, newRef)
		}
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// DeleteTask removes a task, its attachment, and every child submission
// with its blobs. Blobs go before their rows and children before the
// parent row, so a mid-delete failure can leave a stray blob but never a
// file-less orphan row.
func (a *App) DeleteTask(ctx context.Context, id int64) error {
	task, ok, err := a.store.GetTask(id)
	if err != nil {
		return fmt.Errorf("get task: %w", err)
	}
	if !ok {
		return ErrTaskNotFound
	}

	if task.FilePath != nil {
		a.removeBlob(ctx, *task.FilePath)
	}
	if err := a.deleteSubmissionsForTask(ctx, id); err != nil {
		return err
	}
	if err := a.store.DeleteTask(id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	return nil
}
