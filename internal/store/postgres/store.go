package postgres

import (
	"context"
	"errors"
	"time"

	"neoncode/backend/internal/models"
	"neoncode/backend/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	pool       *pgxpool.Pool
	sessionTTL time.Duration
}

type Options struct {
	SessionTTL time.Duration
}

func NewStore(pool *pgxpool.Pool, options Options) *Store {
	ttl := options.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{pool: pool, sessionTTL: ttl}
}

func (s *Store) RegisterUser(ctx context.Context, input store.RegisterInput) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.User{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var exists bool
	if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, input.Username).Scan(&exists); err != nil {
		return models.User{}, err
	}
	if exists {
		err = store.ErrUsernameTaken
		return models.User{}, err
	}
	if err = tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, input.Email).Scan(&exists); err != nil {
		return models.User{}, err
	}
	if exists {
		err = store.ErrEmailTaken
		return models.User{}, err
	}

	var user models.User
	row := tx.QueryRow(ctx, `
		INSERT INTO users (username, email, password_hash, full_name)
		VALUES ($1, $2, $3, $4)
		RETURNING user_id, username, email, full_name, created_at
	`, input.Username, input.Email, string(hash), input.FullName)
	if err = row.Scan(&user.UserID, &user.Username, &user.Email, &user.FullName, &user.CreatedAt); err != nil {
		// Two concurrent registrations can both pass the EXISTS checks;
		// the loser hits the UNIQUE constraint instead.
		err = mapUniqueViolation(err)
		return models.User{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) Login(ctx context.Context, username, password string) (store.LoginResult, error) {
	var user models.User
	var passwordHash string
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, username, email, full_name, created_at, last_login, password_hash
		FROM users
		WHERE username = $1
	`, username)
	if err := row.Scan(&user.UserID, &user.Username, &user.Email, &user.FullName, &user.CreatedAt, &user.LastLogin, &passwordHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.LoginResult{}, store.ErrInvalidCredentials
		}
		return store.LoginResult{}, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(password)); err != nil {
		return store.LoginResult{}, store.ErrInvalidCredentials
	}

	token, err := store.NewToken()
	if err != nil {
		return store.LoginResult{}, err
	}
	expiresAt := time.Now().UTC().Add(s.sessionTTL)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return store.LoginResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var session models.Session
	session.Token = token
	session.UserID = user.UserID
	session.ExpiresAt = expiresAt
	row = tx.QueryRow(ctx, `
		INSERT INTO sessions (token, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING session_id
	`, token, user.UserID, expiresAt)
	if err = row.Scan(&session.SessionID); err != nil {
		return store.LoginResult{}, err
	}

	now := time.Now().UTC()
	if _, err = tx.Exec(ctx, `UPDATE users SET last_login = $1 WHERE user_id = $2`, now, user.UserID); err != nil {
		return store.LoginResult{}, err
	}
	user.LastLogin = &now

	if err = tx.Commit(ctx); err != nil {
		return store.LoginResult{}, err
	}
	return store.LoginResult{User: user, Session: session}, nil
}

func (s *Store) GetSession(ctx context.Context, token string) (models.Session, error) {
	var session models.Session
	row := s.pool.QueryRow(ctx, `
		SELECT session_id, token, user_id, expires_at
		FROM sessions
		WHERE token = $1 AND expires_at > NOW()
	`, token)
	if err := row.Scan(&session.SessionID, &session.Token, &session.UserID, &session.ExpiresAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Session{}, store.ErrSessionNotFound
		}
		return models.Session{}, err
	}
	return session, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrSessionNotFound
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (models.User, error) {
	var user models.User
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, username, email, full_name, created_at, last_login
		FROM users
		WHERE user_id = $1
	`, userID)
	if err := row.Scan(&user.UserID, &user.Username, &user.Email, &user.FullName, &user.CreatedAt, &user.LastLogin); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, store.ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (s *Store) CreateProject(ctx context.Context, userID int64, name, description string) (models.Project, error) {
	var project models.Project
	row := s.pool.QueryRow(ctx, `
		INSERT INTO projects (user_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING project_id, user_id, name, description, created_at, updated_at
	`, userID, name, description)
	if err := row.Scan(&project.ProjectID, &project.UserID, &project.Name, &project.Description, &project.CreatedAt, &project.UpdatedAt); err != nil {
		return models.Project{}, err
	}
	return project, nil
}

func (s *Store) GetProject(ctx context.Context, userID, projectID int64) (models.Project, []models.ProjectFile, error) {
	var project models.Project
	row := s.pool.QueryRow(ctx, `
		SELECT project_id, user_id, name, description, created_at, updated_at
		FROM projects
		WHERE project_id = $1 AND user_id = $2
	`, projectID, userID)
	if err := row.Scan(&project.ProjectID, &project.UserID, &project.Name, &project.Description, &project.CreatedAt, &project.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Project{}, nil, store.ErrProjectNotFound
		}
		return models.Project{}, nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT file_id, project_id, filename, content, language, created_at, updated_at
		FROM project_files
		WHERE project_id = $1
		ORDER BY file_id
	`, projectID)
	if err != nil {
		return models.Project{}, nil, err
	}
	defer rows.Close()

	files := []models.ProjectFile{}
	for rows.Next() {
		var file models.ProjectFile
		if err := rows.Scan(&file.FileID, &file.ProjectID, &file.Filename, &file.Content, &file.Language, &file.CreatedAt, &file.UpdatedAt); err != nil {
			return models.Project{}, nil, err
		}
		files = append(files, file)
	}
	if err := rows.Err(); err != nil {
		return models.Project{}, nil, err
	}
	return project, files, nil
}

func (s *Store) UpdateProject(ctx context.Context, userID, projectID int64, patch store.ProjectPatch) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects
		SET name = COALESCE($1, name),
		    description = COALESCE($2, description),
		    updated_at = NOW()
		WHERE project_id = $3 AND user_id = $4
	`, patch.Name, patch.Description, projectID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrProjectNotFound
	}
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, userID, projectID int64) error {
	// project_files rows go with it via ON DELETE CASCADE
	tag, err := s.pool.Exec(ctx, `DELETE FROM projects WHERE project_id = $1 AND user_id = $2`, projectID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrProjectNotFound
	}
	return nil
}

func (s *Store) CreateFile(ctx context.Context, input store.CreateFileInput) (models.ProjectFile, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.ProjectFile{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = requireProject(ctx, tx, input.UserID, input.ProjectID); err != nil {
		return models.ProjectFile{}, err
	}

	language := input.Language
	if language == "" {
		language = "plaintext"
	}

	var file models.ProjectFile
	row := tx.QueryRow(ctx, `
		INSERT INTO project_files (project_id, filename, content, language)
		VALUES ($1, $2, $3, $4)
		RETURNING file_id, project_id, filename, content, language, created_at, updated_at
	`, input.ProjectID, input.Filename, input.Content, language)
	if err = row.Scan(&file.FileID, &file.ProjectID, &file.Filename, &file.Content, &file.Language, &file.CreatedAt, &file.UpdatedAt); err != nil {
		return models.ProjectFile{}, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.ProjectFile{}, err
	}
	return file, nil
}

func (s *Store) UpdateFile(ctx context.Context, userID, projectID, fileID int64, patch store.FilePatch) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = requireProject(ctx, tx, userID, projectID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE project_files
		SET filename = COALESCE($1, filename),
		    content = COALESCE($2, content),
		    language = COALESCE($3, language),
		    updated_at = NOW()
		WHERE file_id = $4 AND project_id = $5
	`, patch.Filename, patch.Content, patch.Language, fileID, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrFileNotFound
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) DeleteFile(ctx context.Context, userID, projectID, fileID int64) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = requireProject(ctx, tx, userID, projectID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `DELETE FROM project_files WHERE file_id = $1 AND project_id = $2`, fileID, projectID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		err = store.ErrFileNotFound
		return err
	}

	return tx.Commit(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const uniqueViolationCode = "23505"

// mapUniqueViolation translates a users-table UNIQUE violation into the
// matching conflict sentinel; any other error passes through unchanged.
func mapUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}
	switch pgErr.ConstraintName {
	case "users_username_key":
		return store.ErrUsernameTaken
	case "users_email_key":
		return store.ErrEmailTaken
	}
	return err
}

// requireProject resolves the project under ownership; a missing project and a
// foreign-owned project are indistinguishable to the caller.
func requireProject(ctx context.Context, tx pgx.Tx, userID, projectID int64) error {
	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM projects WHERE project_id = $1 AND user_id = $2)
	`, projectID, userID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrProjectNotFound
	}
	return nil
}
