package store

import (
	"context"

	"neoncode/backend/internal/models"
)

type RegisterInput struct {
	Username string
	Email    string
	Password string
	FullName string
}

type LoginResult struct {
	User    models.User
	Session models.Session
}

type CreateFileInput struct {
	UserID    int64
	ProjectID int64
	Filename  string
	Content   string
	Language  string
}

// ProjectPatch carries a partial update; nil fields keep their stored value.
type ProjectPatch struct {
	Name        *string
	Description *string
}

type FilePatch struct {
	Filename *string
	Content  *string
	Language *string
}

type Store interface {
	RegisterUser(ctx context.Context, input RegisterInput) (models.User, error)
	Login(ctx context.Context, username, password string) (LoginResult, error)
	GetSession(ctx context.Context, token string) (models.Session, error)
	DeleteSession(ctx context.Context, token string) error
	GetUser(ctx context.Context, userID int64) (models.User, error)

	CreateProject(ctx context.Context, userID int64, name, description string) (models.Project, error)
	GetProject(ctx context.Context, userID, projectID int64) (models.Project, []models.ProjectFile, error)
	UpdateProject(ctx context.Context, userID, projectID int64, patch ProjectPatch) error
	DeleteProject(ctx context.Context, userID, projectID int64) error

	CreateFile(ctx context.Context, input CreateFileInput) (models.ProjectFile, error)
	UpdateFile(ctx context.Context, userID, projectID, fileID int64, patch FilePatch) error
	DeleteFile(ctx context.Context, userID, projectID, fileID int64) error

	Ping(ctx context.Context) error
}
