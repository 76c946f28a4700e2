package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	"courseportal/internal/app"
	"courseportal/internal/ratelimit"
	"courseportal/internal/session"
	"courseportal/internal/storage"
	"courseportal/internal/util"
	"courseportal/pkg/domain"
)

const sessionCookie = "session"

// Config wires required dependencies for the HTTP server.
type Config struct {
	App              *app.App
	LoginLimiter     *ratelimit.FixedWindowLimiter
	TaskPolicy       storage.Policy
	SubmissionPolicy storage.Policy
	SecureCookies    bool
}

// Server exposes the portal's HTTP endpoints.
type Server struct {
	app              *app.App
	mux              *http.ServeMux
	loginLimiter     *ratelimit.FixedWindowLimiter
	taskPolicy       storage.Policy
	submissionPolicy storage.Policy
	secureCookies    bool
}

// New constructs the server with routes configured. A nil LoginLimiter
// disables login throttling (tests run without Redis).
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires an app")
	}
	s := &Server{
		app:              cfg.App,
		mux:              http.NewServeMux(),
		loginLimiter:     cfg.LoginLimiter,
		taskPolicy:       cfg.TaskPolicy,
		submissionPolicy: cfg.SubmissionPolicy,
		secureCookies:    cfg.SecureCookies,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/me", s.authenticated(s.handleMe))
	s.mux.Handle("/api/auth/user/create", s.requireRole(domain.RoleAdmin, s.handleCreateUser))

	// tasks; the longer submission patterns win over the /api/task/ prefix
	s.mux.Handle("/api/task", s.authenticated(s.handleTasks))
	s.mux.Handle("/api/task/", s.authenticated(s.handleTaskByID))
	s.mux.Handle("/api/task/submission", s.requireRole(domain.RoleStudent, s.handleSubmissionEdit))
	s.mux.Handle("/api/task/submission/", s.authenticated(s.handleSubmissionByTask))

	// stored files
	s.mux.HandleFunc("/uploads/", s.handleUploads)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := sessionToken(r)
		if !ok {
			s.audit(r, "auth.session", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		user, err := s.app.Authenticate(token)
		if err != nil {
			switch {
			case errors.Is(err, session.ErrInvalidToken):
				s.audit(r, "auth.session", "fail", "reason", "invalid_token")
				writeError(w, http.StatusUnauthorized, "invalid or expired session")
			case errors.Is(err, app.ErrUserNotFound):
				s.audit(r, "auth.session", "fail", "reason", "unknown_user")
				writeError(w, http.StatusNotFound, "user not found")
			default:
				// A storage fault is not a credential problem; don't tell
				// the client to re-login over it.
				slog.Error("session resolution failed", "err", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
			return
		}
		next(w, r, user)
	})
}

func (s *Server) requireRole(role domain.UserRole, next authHandler) http.Handler {
	return s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
		if user.Role != role {
			s.audit(r, "auth.role", "fail", "user_id", user.ID, "required", string(role))
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

// sessionToken reads the session cookie, falling back to a bearer header
// for non-browser clients.
func sessionToken(r *http.Request) (string, bool) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		return c.Value, true
	}
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if token != "" {
			return token, true
		}
	}
	return "", false
}

// auth handlers
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if s.loginLimiter != nil && !s.loginLimiter.Allow(util.ClientIP(r)) {
		s.audit(r, "auth.login", "rate_limited")
		w.Header().Set("Retry-After", "60")
		writeError(w, http.StatusTooManyRequests, "too many login attempts")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "auth.login", "fail", "reason", err.Error())
		s.writeAppError(w, err, http.StatusBadRequest)
		return
	}
	s.audit(r, "auth.login", "success", "user_id", user.ID)
	s.setSessionCookie(w, token, int(s.app.SessionTTL().Seconds()))
	writeJSON(w, http.StatusOK, loginResponse{
		Message:  "login successful",
		JWTToken: token,
		User:     user,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	token, ok := sessionToken(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "no active session found")
		return
	}
	if err := s.app.Logout(token); err != nil {
		slog.Warn("session revoke failed", "err", err)
	}
	s.audit(r, "auth.logout", "success")
	s.setSessionCookie(w, "", -1)
	writeJSON(w, http.StatusOK, map[string]string{"message": "logout successful"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createUserRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, err := s.app.CreateUser(app.CreateUserInput{
		Email:    req.Email,
		Name:     req.Name,
		Role:     domain.UserRole(strings.ToLower(strings.TrimSpace(req.Role))),
		Password: req.Password,
	})
	if err != nil {
		s.writeAppError(w, err, http.StatusUnprocessableEntity)
		return
	}
	s.audit(r, "auth.user.create", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "user created",
		"user":    user,
	})
}

// /api/task
func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		tasks, err := s.app.ListTasks()
		if err != nil {
			s.writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"tasks": tasks,
			"count": len(tasks),
		})
	case http.MethodPost:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.handleCreateTask(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	file, cleanup, ok := s.taskFile(w, r)
	if !ok {
		return
	}
	defer cleanup()

	task, err := s.app.CreateTask(r.Context(), app.CreateTaskInput{
		Title:       r.FormValue("title"),
		Description: optionalFormValue(r, "description"),
		File:        file,
	})
	if err != nil {
		s.writeAppError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "task created",
		"task":    task,
	})
}

// /api/task/{id}
func (s *Server) handleTaskByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id, ok := pathID(w, r, "/api/task/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		detail, err := s.app.GetTask(id, user)
		if err != nil {
			s.writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	case http.MethodPut:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.handleUpdateTask(w, r, id)
	case http.MethodDelete:
		if user.Role != domain.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if err := s.app.DeleteTask(r.Context(), id); err != nil {
			s.writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "task deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request, id int64) {
	file, cleanup, ok := s.taskFile(w, r)
	if !ok {
		return
	}
	defer cleanup()

	task, err := s.app.UpdateTask(r.Context(), id, app.UpdateTaskInput{
		Title:       r.FormValue("title"),
		Description: optionalFormValue(r, "description"),
		File:        file,
	})
	if err != nil {
		s.writeAppError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "task updated",
		"task":    task,
	})
}

// PUT /api/task/submission — taskId travels in the form body.
func (s *Server) handleSubmissionEdit(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	files, cleanup, ok := s.submissionFiles(w, r, false)
	if !ok {
		return
	}
	defer cleanup()

	taskID, err := strconv.ParseInt(strings.TrimSpace(r.FormValue("taskId")), 10, 64)
	if err != nil || taskID <= 0 {
		writeError(w, http.StatusBadRequest, "taskId is required")
		return
	}
	sub, err := s.app.UpdateSubmission(r.Context(), taskID, user.ID, files)
	if err != nil {
		s.writeAppError(w, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "submission updated",
		"submission": sub,
	})
}

// /api/task/submission/{taskId}
func (s *Server) handleSubmissionByTask(w http.ResponseWriter, r *http.Request, user domain.User) {
	taskID, ok := pathID(w, r, "/api/task/submission/")
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		subs, err := s.app.ListSubmissions(taskID, user)
		if err != nil {
			s.writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"submissions": subs,
			"count":       len(subs),
		})
	case http.MethodPost:
		if user.Role != domain.RoleStudent {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		files, cleanup, ok := s.submissionFiles(w, r, true)
		if !ok {
			return
		}
		defer cleanup()
		sub, err := s.app.CreateSubmission(r.Context(), taskID, user.ID, files)
		if err != nil {
			s.writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"message":    "submission created",
			"submission": sub,
		})
	case http.MethodDelete:
		if user.Role != domain.RoleStudent {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		if err := s.app.DeleteSubmission(r.Context(), taskID, user.ID); err != nil {
			s.writeAppError(w, err, http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": "submission deleted"})
	default:
		methodNotAllowed(w)
	}
}

// GET /uploads/{ref} streams a stored blob.
func (s *Server) handleUploads(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	ref := strings.TrimPrefix(r.URL.Path, "/uploads/")
	if ref == "" {
		http.NotFound(w, r)
		return
	}
	rc, err := s.app.OpenBlob(r.Context(), ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("open blob failed", "ref", ref, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	defer rc.Close()
	if ct := mime.TypeByExtension(path.Ext(ref)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	_, _ = io.Copy(w, rc)
}

// multipart helpers

// taskFile extracts the optional single attachment from the "file" field,
// enforcing the task upload policy. The cleanup closes the opened part.
func (s *Server) taskFile(w http.ResponseWriter, r *http.Request) (*app.Upload, func(), bool) {
	if s.taskPolicy.MaxFileBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.taskPolicy.MaxFileBytes+1<<20)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeMultipartError(w, err)
		return nil, nil, false
	}
	f, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, true
	}
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid file field")
		return nil, nil, false
	}
	if msg, ok := checkUpload(header, s.taskPolicy); !ok {
		f.Close()
		writeError(w, http.StatusUnprocessableEntity, msg)
		return nil, nil, false
	}
	up := &app.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Reader:      f,
	}
	return up, func() { f.Close() }, true
}

// submissionFiles extracts the "files" field parts, enforcing the
// submission upload policy. When required is false an empty set is legal.
func (s *Server) submissionFiles(w http.ResponseWriter, r *http.Request, required bool) ([]app.Upload, func(), bool) {
	if s.submissionPolicy.MaxFileBytes > 0 && s.submissionPolicy.MaxFiles > 0 {
		limit := s.submissionPolicy.MaxFileBytes*int64(s.submissionPolicy.MaxFiles) + 1<<20
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		writeMultipartError(w, err)
		return nil, nil, false
	}
	var headers []*multipart.FileHeader
	if r.MultipartForm != nil {
		headers = r.MultipartForm.File["files"]
	}
	if len(headers) == 0 {
		if required {
			writeError(w, http.StatusBadRequest, "at least one file is required (field: files)")
			return nil, nil, false
		}
		return nil, func() {}, true
	}
	if s.submissionPolicy.MaxFiles > 0 && len(headers) > s.submissionPolicy.MaxFiles {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("too many files, at most %d allowed", s.submissionPolicy.MaxFiles))
		return nil, nil, false
	}

	var (
		files   []app.Upload
		closers []io.Closer
	)
	cleanup := func() {
		for _, c := range closers {
			c.Close()
		}
	}
	for _, header := range headers {
		if msg, ok := checkUpload(header, s.submissionPolicy); !ok {
			cleanup()
			writeError(w, http.StatusUnprocessableEntity, msg)
			return nil, nil, false
		}
		f, err := header.Open()
		if err != nil {
			cleanup()
			writeError(w, http.StatusBadRequest, "invalid file field")
			return nil, nil, false
		}
		closers = append(closers, f)
		files = append(files, app.Upload{
			Name:        header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Reader:      f,
		})
	}
	return files, cleanup, true
}

// writeMultipartError distinguishes a body that blew past the size cap
// (a policy violation, 422 like the per-file checks) from a malformed one.
func writeMultipartError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusUnprocessableEntity, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, "invalid form data")
}

func checkUpload(header *multipart.FileHeader, policy storage.Policy) (string, bool) {
	if policy.MaxFileBytes > 0 && header.Size > policy.MaxFileBytes {
		return fmt.Sprintf("file %q exceeds the %d byte limit", header.Filename, policy.MaxFileBytes), false
	}
	if !policy.AllowsType(header.Header.Get("Content-Type")) {
		return fmt.Sprintf("file %q has an unsupported type", header.Filename), false
	}
	return "", true
}

// response plumbing

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message  string      `json:"message"`
	JWTToken string      `json:"jwtToken"`
	User     domain.User `json:"user"`
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	Password string `json:"password"`
}

func (s *Server) setSessionCookie(w http.ResponseWriter, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// pathID parses the trailing numeric path segment after prefix.
func pathID(w http.ResponseWriter, r *http.Request, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(r.URL.Path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		http.NotFound(w, r)
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		http.NotFound(w, r)
		return 0, false
	}
	return id, true
}

func optionalFormValue(r *http.Request, key string) *string {
	if r.Form == nil {
		return nil
	}
	values, ok := r.Form[key]
	if !ok && r.MultipartForm != nil {
		values, ok = r.MultipartForm.Value[key]
	}
	if !ok || len(values) == 0 {
		return nil
	}
	v := values[0]
	return &v
}

// writeAppError maps core errors onto HTTP statuses. validationStatus
// distinguishes the 400 form-validation routes from the 422
// credential-validation ones.
func (s *Server) writeAppError(w http.ResponseWriter, err error, validationStatus int) {
	switch {
	case app.IsValidation(err):
		writeError(w, validationStatus, err.Error())
	case errors.Is(err, app.ErrDuplicateSubmission),
		errors.Is(err, app.ErrEmailExists):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, session.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid or expired session")
	case errors.Is(err, app.ErrUserNotFound),
		errors.Is(err, app.ErrTaskNotFound),
		errors.Is(err, app.ErrSubmissionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}
