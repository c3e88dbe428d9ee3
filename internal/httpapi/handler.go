package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"neoncode/backend/internal/models"
	"neoncode/backend/internal/store"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	store store.Store
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message   string   `json:"message"`
	Token     string   `json:"token"`
	ExpiresAt string   `json:"expires_at"`
	User      userInfo `json:"user"`
}

type userInfo struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

type profileResponse struct {
	UserID    int64      `json:"user_id"`
	Username  string     `json:"username"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	CreatedAt time.Time  `json:"created_at"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

type projectResponse struct {
	ID          int64                `json:"id"`
	Name        string               `json:"name"`
	Description string               `json:"description"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Files       []models.ProjectFile `json:"files"`
}

type createFileRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
	Language string `json:"language"`
}

type updateFileRequest struct {
	Filename *string `json:"filename"`
	Content  *string `json:"content"`
	Language *string `json:"language"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewHandler(store store.Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.handleIndex)
	r.Get("/health", h.handleHealth)
	r.Post("/register", h.handleRegister)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(h.store))
		r.Get("/profile", h.handleProfile)
		r.Post("/projects", h.handleCreateProject)
		r.Route("/projects/{projectID}", func(r chi.Router) {
			r.Get("/", h.handleGetProject)
			r.Put("/", h.handleUpdateProject)
			r.Delete("/", h.handleDeleteProject)
			r.Post("/files", h.handleCreateFile)
			r.Put("/files/{fileID}", h.handleUpdateFile)
			r.Delete("/files/{fileID}", h.handleDeleteFile)
		})
	})

	return r
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "NeonCode Backend API",
		"version":   "2.0.0",
		"status":    "running",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"endpoints": map[string]string{
			"health":   "/health",
			"register": "/register",
			"login":    "/login",
			"logout":   "/logout",
			"profile":  "/profile",
			"projects": "/projects",
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"database":  "connected",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FullName = strings.TrimSpace(req.FullName)

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username, email, and password are required")
		return
	}

	user, err := h.store.RegisterUser(r.Context(), store.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "user registered successfully",
		"user_id": user.UserID,
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	result, err := h.store.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:   "login successful",
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt.Format(time.RFC3339),
		User: userInfo{
			Username: result.User.Username,
			Email:    result.User.Email,
			FullName: result.User.FullName,
		},
	})
}

// handleLogout deletes by the raw token rather than resolving the session
// first: an expired session row is still revocable, only a token with no row
// at all is rejected.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if token == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}

	if err := h.store.DeleteSession(r.Context(), token); err != nil {
		if errors.Is(err, store.ErrSessionNotFound) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "logged out successfully"})
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}

	user, err := h.store.GetUser(r.Context(), session.UserID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{
		UserID:    user.UserID,
		Username:  user.Username,
		Email:     user.Email,
		FullName:  user.FullName,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLogin,
	})
}

func (h *Handler) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}

	var req createProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "project name is required")
		return
	}

	project, err := h.store.CreateProject(r.Context(), session.UserID, req.Name, req.Description)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":    "project created successfully",
		"project_id": project.ProjectID,
	})
}

func (h *Handler) handleGetProject(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	project, files, err := h.store.GetProject(r.Context(), session.UserID, projectID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, projectResponse{
		ID:          project.ProjectID,
		Name:        project.Name,
		Description: project.Description,
		CreatedAt:   project.CreatedAt,
		UpdatedAt:   project.UpdatedAt,
		Files:       files,
	})
}

func (h *Handler) handleUpdateProject(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	var req updateProjectRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.store.UpdateProject(r.Context(), session.UserID, projectID, store.ProjectPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "project updated successfully"})
}

func (h *Handler) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	if err := h.store.DeleteProject(r.Context(), session.UserID, projectID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "project deleted successfully"})
}

func (h *Handler) handleCreateFile(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}

	var req createFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Filename = strings.TrimSpace(req.Filename)
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "filename is required")
		return
	}

	file, err := h.store.CreateFile(r.Context(), store.CreateFileInput{
		UserID:    session.UserID,
		ProjectID: projectID,
		Filename:  req.Filename,
		Content:   req.Content,
		Language:  req.Language,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "file created successfully",
		"file_id": file.FileID,
	})
}

func (h *Handler) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	fileID, ok := pathID(w, r, "fileID")
	if !ok {
		return
	}

	var req updateFileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	err := h.store.UpdateFile(r.Context(), session.UserID, projectID, fileID, store.FilePatch{
		Filename: req.Filename,
		Content:  req.Content,
		Language: req.Language,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "file updated successfully"})
}

func (h *Handler) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	session, ok := sessionFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing token")
		return
	}
	projectID, ok := pathID(w, r, "projectID")
	if !ok {
		return
	}
	fileID, ok := pathID(w, r, "fileID")
	if !ok {
		return
	}

	if err := h.store.DeleteFile(r.Context(), session.UserID, projectID, fileID); err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, messageResponse{Message: "file deleted successfully"})
}

// pathID parses a numeric path segment. A non-numeric id cannot name any
// resource, so it gets the same fused 404 as a missing one, flavored per
// resource so the body stays byte-identical with the store's not-found path.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		message := "project not found or unauthorized"
		if name == "fileID" {
			message = "file not found or unauthorized"
		}
		writeError(w, http.StatusNotFound, "not_found", message)
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return false
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrUsernameTaken):
		return http.StatusConflict, "conflict", "username already exists"
	case errors.Is(err, store.ErrEmailTaken):
		return http.StatusConflict, "conflict", "email already exists"
	case errors.Is(err, store.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", "invalid credentials"
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusUnauthorized, "unauthorized", "invalid or expired token"
	case errors.Is(err, store.ErrUserNotFound):
		return http.StatusNotFound, "not_found", "user not found"
	case errors.Is(err, store.ErrProjectNotFound):
		return http.StatusNotFound, "not_found", "project not found or unauthorized"
	case errors.Is(err, store.ErrFileNotFound):
		return http.StatusNotFound, "not_found", "file not found or unauthorized"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: responseError{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
