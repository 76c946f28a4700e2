package store

import (
	"errors"
	"testing"
	"time"

	"courseportal/pkg/domain"
)

func TestMemoryStoreImplementsStore(t *testing.T) {
	var _ Store = NewMemoryStore()
}

func TestUserEmailUniqueness(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	u := domain.User{Email: "a@example.com", Name: "A", Role: domain.RoleStudent, CreatedAt: now, UpdatedAt: now}

	created, err := s.CreateUser(u)
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if created.ID == 0 {
		t.Fatalf("expected assigned ID")
	}
	if _, err := s.CreateUser(u); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("duplicate email = %v, want ErrDuplicateEmail", err)
	}
	ok, err := s.HasUserEmail("a@example.com")
	if err != nil || !ok {
		t.Fatalf("has email = %v, %v", ok, err)
	}
}

func TestTaskListOrder(t *testing.T) {
	s := NewMemoryStore()
	base := time.Now().UTC()
	for i := 0; i < 3; i++ {
		_, err := s.CreateTask(domain.Task{
			Title:     "task",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
			UpdatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("create task %d: %v", i, err)
		}
	}
	tasks, err := s.ListTasks()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("len = %d, want 3", len(tasks))
	}
	for i := 1; i < len(tasks); i++ {
		if tasks[i].CreatedAt.After(tasks[i-1].CreatedAt) {
			t.Fatalf("tasks not sorted newest first")
		}
	}
}

func TestSubmissionPairUniqueness(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	sub := domain.Submission{TaskID: 1, StudentID: 2, FilePaths: []string{"submissions/a.pdf"}, CreatedAt: now, UpdatedAt: now}

	if _, err := s.CreateSubmission(sub); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.CreateSubmission(sub); !errors.Is(err, ErrDuplicatePair) {
		t.Fatalf("duplicate pair = %v, want ErrDuplicatePair", err)
	}
	// Same student, different task is fine.
	other := sub
	other.TaskID = 9
	if _, err := s.CreateSubmission(other); err != nil {
		t.Fatalf("create other task: %v", err)
	}
}

func TestSubmissionListJoinsStudentInfo(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	student, err := s.CreateUser(domain.User{Email: "s@example.com", Name: "Student", Role: domain.RoleStudent, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := s.CreateSubmission(domain.Submission{TaskID: 1, StudentID: student.ID, FilePaths: []string{"submissions/x.pdf"}, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("create submission: %v", err)
	}
	subs, err := s.ListSubmissionsByTask(1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("len = %d, want 1", len(subs))
	}
	if subs[0].StudentName != "Student" || subs[0].StudentEmail != "s@example.com" {
		t.Fatalf("student info not joined: %+v", subs[0])
	}
}

func TestDeleteSubmissionFreesPair(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	sub, err := s.CreateSubmission(domain.Submission{TaskID: 1, StudentID: 2, FilePaths: []string{"submissions/a.pdf"}, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteSubmission(sub.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := s.GetSubmission(1, 2); ok {
		t.Fatalf("pair should be gone after delete")
	}
	if _, err := s.CreateSubmission(domain.Submission{TaskID: 1, StudentID: 2, FilePaths: []string{"submissions/b.pdf"}, CreatedAt: now, UpdatedAt: now}); err != nil {
		t.Fatalf("recreate after delete: %v", err)
	}
}

func TestDeleteSubmissionsByTask(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now().UTC()
	for studentID := int64(1); studentID <= 3; studentID++ {
		if _, err := s.CreateSubmission(domain.Submission{TaskID: 5, StudentID: studentID, FilePaths: []string{"submissions/a.pdf"}, CreatedAt: now, UpdatedAt: now}); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if err := s.DeleteSubmissionsByTask(5); err != nil {
		t.Fatalf("delete by task: %v", err)
	}
	subs, err := s.ListSubmissionsByTask(5)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("len = %d, want 0", len(subs))
	}
}
