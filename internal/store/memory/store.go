// Package memory provides an in-memory Store with the same observable
// semantics as the postgres implementation. It backs the handler tests and
// local runs without a database.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"neoncode/backend/internal/models"
	"neoncode/backend/internal/store"

	"golang.org/x/crypto/bcrypt"
)

type Store struct {
	mu         sync.RWMutex
	sessionTTL time.Duration

	users    map[int64]*userRecord
	sessions map[string]models.Session
	projects map[int64]models.Project
	files    map[int64]models.ProjectFile

	nextUserID    int64
	nextSessionID int64
	nextProjectID int64
	nextFileID    int64

	now func() time.Time
}

type userRecord struct {
	user         models.User
	passwordHash string
}

type Options struct {
	SessionTTL time.Duration
	// Now overrides the clock; tests use it to force expiry.
	Now func() time.Time
}

func NewStore(options Options) *Store {
	ttl := options.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := options.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		sessionTTL: ttl,
		users:      make(map[int64]*userRecord),
		sessions:   make(map[string]models.Session),
		projects:   make(map[int64]models.Project),
		files:      make(map[int64]models.ProjectFile),
		now:        now,
	}
}

func (s *Store) RegisterUser(ctx context.Context, input store.RegisterInput) (models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return models.User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.users {
		if record.user.Username == input.Username {
			return models.User{}, store.ErrUsernameTaken
		}
	}
	for _, record := range s.users {
		if record.user.Email == input.Email {
			return models.User{}, store.ErrEmailTaken
		}
	}

	s.nextUserID++
	user := models.User{
		UserID:    s.nextUserID,
		Username:  input.Username,
		Email:     input.Email,
		FullName:  input.FullName,
		CreatedAt: s.now(),
	}
	s.users[user.UserID] = &userRecord{user: user, passwordHash: string(hash)}
	return user, nil
}

func (s *Store) Login(ctx context.Context, username, password string) (store.LoginResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var record *userRecord
	for _, candidate := range s.users {
		if candidate.user.Username == username {
			record = candidate
			break
		}
	}
	if record == nil {
		return store.LoginResult{}, store.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(record.passwordHash), []byte(password)); err != nil {
		return store.LoginResult{}, store.ErrInvalidCredentials
	}

	token, err := store.NewToken()
	if err != nil {
		return store.LoginResult{}, err
	}

	now := s.now()
	s.nextSessionID++
	session := models.Session{
		SessionID: s.nextSessionID,
		Token:     token,
		UserID:    record.user.UserID,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	s.sessions[token] = session
	record.user.LastLogin = &now

	return store.LoginResult{User: record.user, Session: session}, nil
}

func (s *Store) GetSession(ctx context.Context, token string) (models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[token]
	if !ok || !session.ExpiresAt.After(s.now()) {
		return models.Session{}, store.ErrSessionNotFound
	}
	return session, nil
}

func (s *Store) DeleteSession(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return store.ErrSessionNotFound
	}
	delete(s.sessions, token)
	return nil
}

func (s *Store) GetUser(ctx context.Context, userID int64) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.users[userID]
	if !ok {
		return models.User{}, store.ErrUserNotFound
	}
	return record.user, nil
}

func (s *Store) CreateProject(ctx context.Context, userID int64, name, description string) (models.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.nextProjectID++
	project := models.Project{
		ProjectID:   s.nextProjectID,
		UserID:      userID,
		Name:        name,
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.projects[project.ProjectID] = project
	return project, nil
}

func (s *Store) GetProject(ctx context.Context, userID, projectID int64) (models.Project, []models.ProjectFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	project, ok := s.projects[projectID]
	if !ok || project.UserID != userID {
		return models.Project{}, nil, store.ErrProjectNotFound
	}

	files := []models.ProjectFile{}
	for _, file := range s.files {
		if file.ProjectID == projectID {
			files = append(files, file)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].FileID < files[j].FileID })
	return project, files, nil
}

func (s *Store) UpdateProject(ctx context.Context, userID, projectID int64, patch store.ProjectPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok || project.UserID != userID {
		return store.ErrProjectNotFound
	}
	if patch.Name != nil {
		project.Name = *patch.Name
	}
	if patch.Description != nil {
		project.Description = *patch.Description
	}
	project.UpdatedAt = s.now()
	s.projects[projectID] = project
	return nil
}

func (s *Store) DeleteProject(ctx context.Context, userID, projectID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok || project.UserID != userID {
		return store.ErrProjectNotFound
	}
	delete(s.projects, projectID)
	for fileID, file := range s.files {
		if file.ProjectID == projectID {
			delete(s.files, fileID)
		}
	}
	return nil
}

func (s *Store) CreateFile(ctx context.Context, input store.CreateFileInput) (models.ProjectFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[input.ProjectID]
	if !ok || project.UserID != input.UserID {
		return models.ProjectFile{}, store.ErrProjectNotFound
	}

	language := input.Language
	if language == "" {
		language = "plaintext"
	}

	now := s.now()
	s.nextFileID++
	file := models.ProjectFile{
		FileID:    s.nextFileID,
		ProjectID: input.ProjectID,
		Filename:  input.Filename,
		Content:   input.Content,
		Language:  language,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.files[file.FileID] = file
	return file, nil
}

func (s *Store) UpdateFile(ctx context.Context, userID, projectID, fileID int64, patch store.FilePatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok || project.UserID != userID {
		return store.ErrProjectNotFound
	}
	file, ok := s.files[fileID]
	if !ok || file.ProjectID != projectID {
		return store.ErrFileNotFound
	}
	if patch.Filename != nil {
		file.Filename = *patch.Filename
	}
	if patch.Content != nil {
		file.Content = *patch.Content
	}
	if patch.Language != nil {
		file.Language = *patch.Language
	}
	file.UpdatedAt = s.now()
	s.files[fileID] = file
	return nil
}

func (s *Store) DeleteFile(ctx context.Context, userID, projectID, fileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	project, ok := s.projects[projectID]
	if !ok || project.UserID != userID {
		return store.ErrProjectNotFound
	}
	file, ok := s.files[fileID]
	if !ok || file.ProjectID != projectID {
		return store.ErrFileNotFound
	}
	delete(s.files, fileID)
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}
