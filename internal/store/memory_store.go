package store

import (
	"sort"
	"sync"

	"courseportal/pkg/domain"
)

// MemoryStore keeps all records in-process. It mirrors the GORM store's
// constraint behavior (unique email, unique (task, student) pair,
// auto-increment IDs) so tests exercise the same contract.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[int64]domain.User
	emails      map[string]int64
	tasks       map[int64]domain.Task
	submissions map[int64]domain.Submission
	pairs       map[[2]int64]int64 // (taskID, studentID) -> submission ID
	nextUser    int64
	nextTask    int64
	nextSub     int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[int64]domain.User),
		emails:      make(map[string]int64),
		tasks:       make(map[int64]domain.Task),
		submissions: make(map[int64]domain.Submission),
		pairs:       make(map[[2]int64]int64),
	}
}

// CreateUser registers a user, enforcing email uniqueness.
func (m *MemoryStore) CreateUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.emails[u.Email]; exists {
		return domain.User{}, ErrDuplicateEmail
	}
	m.nextUser++
	u.ID = m.nextUser
	m.users[u.ID] = u
	m.emails[u.Email] = u.ID
	return u, nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.emails[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.emails[email]
	if !ok {
		return domain.User{}, false, nil
	}
	u, ok := m.users[id]
	return u, ok, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// CountUsers returns the number of users.
func (m *MemoryStore) CountUsers() (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.users)), nil
}

// CreateTask stores a task and assigns its ID.
func (m *MemoryStore) CreateTask(t domain.Task) (domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextTask++
	t.ID = m.nextTask
	m.tasks[t.ID] = t
	return t, nil
}

// ListTasks returns tasks ordered by creation time, newest first.
func (m *MemoryStore) ListTasks() ([]domain.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

// GetTask retrieves a task by ID.
func (m *MemoryStore) GetTask(id int64) (domain.Task, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	return t, ok, nil
}

// UpdateTask replaces an existing task record.
func (m *MemoryStore) UpdateTask(t domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return nil
	}
	m.tasks[t.ID] = t
	return nil
}

// DeleteTask removes a task record.
func (m *MemoryStore) DeleteTask(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

// CreateSubmission stores a submission, enforcing pair uniqueness.
func (m *MemoryStore) CreateSubmission(s domain.Submission) (domain.Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := [2]int64{s.TaskID, s.StudentID}
	if _, exists := m.pairs[key]; exists {
		return domain.Submission{}, ErrDuplicatePair
	}
	m.nextSub++
	s.ID = m.nextSub
	m.submissions[s.ID] = s
	m.pairs[key] = s.ID
	return s, nil
}

// GetSubmission retrieves the submission for a (task, student) pair.
func (m *MemoryStore) GetSubmission(taskID, studentID int64) (domain.Submission, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.pairs[[2]int64{taskID, studentID}]
	if !ok {
		return domain.Submission{}, false, nil
	}
	s, ok := m.submissions[id]
	return s, ok, nil
}

// ListSubmissionsByTask returns all submissions for a task.
func (m *MemoryStore) ListSubmissionsByTask(taskID int64) ([]domain.Submission, error) {
	return m.listSubmissions(func(s domain.Submission) bool {
		return s.TaskID == taskID
	})
}

// ListSubmissionsByTaskAndStudent returns the student's own submissions.
func (m *MemoryStore) ListSubmissionsByTaskAndStudent(taskID, studentID int64) ([]domain.Submission, error) {
	return m.listSubmissions(func(s domain.Submission) bool {
		return s.TaskID == taskID && s.StudentID == studentID
	})
}

func (m *MemoryStore) listSubmissions(match func(domain.Submission) bool) ([]domain.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Submission, 0)
	for _, s := range m.submissions {
		if !match(s) {
			continue
		}
		if u, ok := m.users[s.StudentID]; ok {
			s.StudentName = u.Name
			s.StudentEmail = u.Email
		}
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

// UpdateSubmission replaces an existing submission record.
func (m *MemoryStore) UpdateSubmission(s domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.submissions[s.ID]
	if !ok {
		return nil
	}
	existing.FilePaths = s.FilePaths
	existing.UpdatedAt = s.UpdatedAt
	m.submissions[s.ID] = existing
	return nil
}

// DeleteSubmission removes a submission record by ID.
func (m *MemoryStore) DeleteSubmission(id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok {
		return nil
	}
	delete(m.submissions, id)
	delete(m.pairs, [2]int64{s.TaskID, s.StudentID})
	return nil
}

// DeleteSubmissionsByTask removes all submissions belonging to a task.
func (m *MemoryStore) DeleteSubmissionsByTask(taskID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.submissions {
		if s.TaskID == taskID {
			delete(m.submissions, id)
			delete(m.pairs, [2]int64{s.TaskID, s.StudentID})
		}
	}
	return nil
}
