package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"neoncode/backend/internal/store/memory"
)

// Full register → login → CRUD → logout pass against the in-memory store,
// exercising the same router and middleware the server runs.
func TestSessionFlow(t *testing.T) {
	st := memory.NewStore(memory.Options{})
	handler := NewHandler(st).Routes()

	do := func(method, path, token string, payload interface{}) *httptest.ResponseRecorder {
		t.Helper()
		var raw []byte
		if payload != nil {
			var err error
			raw, err = json.Marshal(payload)
			if err != nil {
				t.Fatalf("marshal payload: %v", err)
			}
		}
		req := httptest.NewRequest(method, path, bytes.NewReader(raw))
		if token != "" {
			req.Header.Set("Authorization", token)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp
	}

	resp := do(http.MethodPost, "/register", "", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "pw1",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(http.MethodPost, "/register", "", map[string]string{
		"username": "alice", "email": "b@x.com", "password": "pw2",
	})
	if resp.Code != http.StatusConflict {
		t.Fatalf("duplicate register: expected 409, got %d", resp.Code)
	}

	resp = do(http.MethodPost, "/login", "", map[string]string{
		"username": "alice", "password": "pw1",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.Code)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" {
		t.Fatal("login: empty token")
	}

	resp = do(http.MethodGet, "/projects/1", login.Token, nil)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("get before create: expected 404, got %d", resp.Code)
	}

	resp = do(http.MethodPost, "/projects", login.Token, map[string]string{"name": "demo"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("create project: expected 201, got %d", resp.Code)
	}
	var created struct {
		ProjectID int64 `json:"project_id"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.ProjectID != 1 {
		t.Fatalf("expected project_id 1, got %d", created.ProjectID)
	}

	resp = do(http.MethodGet, "/projects/1", login.Token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("get project: expected 200, got %d", resp.Code)
	}
	var project struct {
		Name  string            `json:"name"`
		Files []json.RawMessage `json:"files"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &project); err != nil {
		t.Fatalf("decode project: %v", err)
	}
	if project.Name != "demo" {
		t.Fatalf("expected name demo, got %q", project.Name)
	}
	if project.Files == nil || len(project.Files) != 0 {
		t.Fatalf("expected empty files list, got %v", project.Files)
	}

	resp = do(http.MethodPost, "/logout", login.Token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.Code)
	}

	resp = do(http.MethodGet, "/projects/1", login.Token, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("get after logout: expected 401, got %d", resp.Code)
	}
}

// An expired session is still revocable: logout removes the row and returns
// 200 even when the token would fail authentication everywhere else.
func TestLogoutExpiredSession(t *testing.T) {
	current := time.Now().UTC()
	st := memory.NewStore(memory.Options{
		SessionTTL: 24 * time.Hour,
		Now:        func() time.Time { return current },
	})
	handler := NewHandler(st).Routes()

	do := func(method, path, token string, payload interface{}) *httptest.ResponseRecorder {
		t.Helper()
		var raw []byte
		if payload != nil {
			var err error
			raw, err = json.Marshal(payload)
			if err != nil {
				t.Fatalf("marshal payload: %v", err)
			}
		}
		req := httptest.NewRequest(method, path, bytes.NewReader(raw))
		if token != "" {
			req.Header.Set("Authorization", token)
		}
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp
	}

	resp := do(http.MethodPost, "/register", "", map[string]string{
		"username": "alice", "email": "a@x.com", "password": "pw1",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", resp.Code)
	}
	resp = do(http.MethodPost, "/login", "", map[string]string{
		"username": "alice", "password": "pw1",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", resp.Code)
	}
	var login struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}

	current = current.Add(25 * time.Hour)

	resp = do(http.MethodGet, "/profile", login.Token, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("profile with expired token: expected 401, got %d", resp.Code)
	}

	resp = do(http.MethodPost, "/logout", login.Token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("logout of expired session: expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = do(http.MethodPost, "/logout", login.Token, nil)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("second logout: expected 401, got %d", resp.Code)
	}
}

// A real project owned by someone else must be indistinguishable from one
// that does not exist, through the whole HTTP stack.
func TestCrossUserProjectAccess(t *testing.T) {
	st := memory.NewStore(memory.Options{})
	handler := NewHandler(st).Routes()

	register := func(username, email string) string {
		t.Helper()
		raw, _ := json.Marshal(map[string]string{"username": username, "email": email, "password": "pw"})
		req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(raw))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("register %s: got %d", username, resp.Code)
		}

		raw, _ = json.Marshal(map[string]string{"username": username, "password": "pw"})
		req = httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader(raw))
		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("login %s: got %d", username, resp.Code)
		}
		var login struct {
			Token string `json:"token"`
		}
		if err := json.Unmarshal(resp.Body.Bytes(), &login); err != nil {
			t.Fatalf("decode login: %v", err)
		}
		return login.Token
	}

	aliceToken := register("alice", "a@x.com")
	bobToken := register("bob", "b@x.com")

	raw, _ := json.Marshal(map[string]string{"name": "bobs"})
	req := httptest.NewRequest(http.MethodPost, "/projects", bytes.NewReader(raw))
	req.Header.Set("Authorization", bobToken)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("bob create project: got %d", resp.Code)
	}

	get := func(token, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		return resp
	}

	foreign := get(aliceToken, "/projects/1")
	missing := get(aliceToken, "/projects/12345")
	if foreign.Code != http.StatusNotFound || missing.Code != http.StatusNotFound {
		t.Fatalf("expected both 404, got %d and %d", foreign.Code, missing.Code)
	}
	if !bytes.Equal(foreign.Body.Bytes(), missing.Body.Bytes()) {
		t.Fatalf("bodies differ: %q vs %q", foreign.Body.String(), missing.Body.String())
	}
}
