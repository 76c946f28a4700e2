package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"courseportal/internal/storage"
	"courseportal/internal/store"
	"courseportal/pkg/domain"
)

// ListSubmissions returns the submissions for a task that the requester is
// allowed to see: students only their own, admins all of them.
func (a *App) ListSubmissions(taskID int64, requester domain.User) ([]domain.Submission, error) {
	var (
		subs []domain.Submission
		err  error
	)
	if requester.Role == domain.RoleStudent {
		subs, err = a.store.ListSubmissionsByTaskAndStudent(taskID, requester.ID)
	} else {
		subs, err = a.store.ListSubmissionsByTask(taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// CreateSubmission records a student's first submission for a task. Files
// are written to the blob store only after the duplicate check; any blobs
// already written when a later step fails are deleted, so a rejected create
// retains nothing.
func (a *App) CreateSubmission(ctx context.Context, taskID, studentID int64, files []Upload) (domain.Submission, error) {
	if len(files) == 0 {
		return domain.Submission{}, Validation("at least one file is required")
	}
	if _, ok, err := a.store.GetTask(taskID); err != nil {
		return domain.Submission{}, fmt.Errorf("get task: %w", err)
	} else if !ok {
		return domain.Submission{}, ErrTaskNotFound
	}
	if _, exists, err := a.store.GetSubmission(taskID, studentID); err != nil {
		return domain.Submission{}, fmt.Errorf("check submission: %w", err)
	} else if exists {
		return domain.Submission{}, ErrDuplicateSubmission
	}

	refs, err := a.putAll(ctx, files)
	if err != nil {
		return domain.Submission{}, err
	}

	now := time.Now().UTC()
	sub, err := a.store.CreateSubmission(domain.Submission{
		TaskID:    taskID,
		StudentID: studentID,
		FilePaths: refs,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		// The pre-check can lose a race; the unique constraint is the
		// backstop. Either way the uploaded blobs must not survive.
		for _, ref := range refs {
			a.removeBlob(ctx, ref)
		}
		if errors.Is(err, store.ErrDuplicatePair) {
			return domain.Submission{}, ErrDuplicateSubmission
		}
		return domain.Submission{}, fmt.Errorf("create submission: %w", err)
	}
	return sub, nil
}

// UpdateSubmission replaces the file list of an existing submission
// wholesale. An empty file set is a legal no-op that returns the record
// unchanged. Superseded blobs are deleted before the new ones are written.
func (a *App) UpdateSubmission(ctx context.Context, taskID, studentID int64, files []Upload) (domain.Submission, error) {
	sub, ok, err := a.store.GetSubmission(taskID, studentID)
	if err != nil {
		return domain.Submission{}, fmt.Errorf("get submission: %w", err)
	}
	if !ok {
		return domain.Submission{}, ErrSubmissionNotFound
	}
	if len(files) == 0 {
		return sub, nil
	}

	for _, ref := range sub.FilePaths {
		a.removeBlob(ctx, ref)
	}
	refs, err := a.putAll(ctx, files)
	if err != nil {
		return domain.Submission{}, err
	}

	sub.FilePaths = refs
	sub.UpdatedAt = time.Now().UTC()
	if err := a.store.UpdateSubmission(sub); err != nil {
		for _, ref := range refs {
			a.removeBlob(ctx, ref)
		}
		return domain.Submission{}, fmt.Errorf("update submission: %w", err)
	}
	return sub, nil
}

// DeleteSubmission removes a student's submission and every blob it
// references.
func (a *App) DeleteSubmission(ctx context.Context, taskID, studentID int64) error {
	sub, ok, err := a.store.GetSubmission(taskID, studentID)
	if err != nil {
		return fmt.Errorf("get submission: %w", err)
	}
	if !ok {
		return ErrSubmissionNotFound
	}
	for _, ref := range sub.FilePaths {
		a.removeBlob(ctx, ref)
	}
	if err := a.store.DeleteSubmission(sub.ID); err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	return nil
}

// deleteSubmissionsForTask is the cascade entry point used by task delete:
// every child submission's blobs go first, then the rows.
func (a *App) deleteSubmissionsForTask(ctx context.Context, taskID int64) error {
	subs, err := a.store.ListSubmissionsByTask(taskID)
	if err != nil {
		return fmt.Errorf("list submissions: %w", err)
	}
	for _, sub := range subs {
		for _, ref := range sub.FilePaths {
			a.removeBlob(ctx, ref)
		}
	}
	if err := a.store.DeleteSubmissionsByTask(taskID); err != nil {
		return fmt.Errorf("delete submissions: %w", err)
	}
	return nil
}

// putAll writes the received files in order; on any failure the blobs
// already written are deleted before the error propagates.
func (a *App) putAll(ctx context.Context, files []Upload) ([]string, error) {
	refs := make([]string, 0, len(files))
	for _, f := range files {
		ref, err := a.blobs.Put(ctx, storage.BucketSubmissions, f.Name, f.Reader, f.Size, f.ContentType)
		if err != nil {
			for _, written := range refs {
				a.removeBlob(ctx, written)
			}
			return nil, fmt.Errorf("store submission file: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, nil
}
