package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/GoCodeAlone/registry/store"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// --- helpers ---

const testSecret = "test-secret-key-for-jwt-signing!"

// seedUser creates a user with a bcrypt-hashed password directly in the store.
func seedUser(t *testing.T, users store.UserStore, username, password string, roles ...store.Role) *store.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := &store.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: string(hash),
		Roles:        roles,
	}
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

// signToken issues a bearer token for username, signed with testSecret.
func signToken(t *testing.T, username string) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": username,
		"iat": now.Unix(),
		"exp": now.Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func formRequest(path string, values url.Values) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return body
}

func newTestAuthHandler() (*AuthHandler, *store.MockUserStore) {
	users := store.NewMockUserStore()
	h := NewAuthHandler(users, []byte(testSecret), "test", time.Hour)
	return h, users
}

// --- tests ---

func TestToken(t *testing.T) {
	h, users := newTestAuthHandler()
	seedUser(t, users, "alice", "Password123!")

	t.Run("success", func(t *testing.T) {
		req := formRequest("/api/v1/token", url.Values{
			"username": {"alice"},
			"password": {"Password123!"},
		})
		w := httptest.NewRecorder()
		h.Token(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
		}
		body := decodeBody(t, w.Result())
		data, _ := body["data"].(map[string]any)
		if data["access_token"] == nil {
			t.Fatal("expected access_token in response")
		}
		if data["token_type"] != "bearer" {
			t.Fatalf("token_type = %v, want bearer", data["token_type"])
		}

		// The issued token must carry the username as its subject.
		token, err := jwt.Parse(data["access_token"].(string), func(*jwt.Token) (any, error) {
			return []byte(testSecret), nil
		})
		if err != nil || !token.Valid {
			t.Fatalf("issued token does not verify: %v", err)
		}
		sub, _ := token.Claims.GetSubject()
		if sub != "alice" {
			t.Fatalf("sub = %q, want alice", sub)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		req := formRequest("/api/v1/token", url.Values{
			"username": {"alice"},
			"password": {"WrongPass"},
		})
		w := httptest.NewRecorder()
		h.Token(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
		if got := w.Header().Get("WWW-Authenticate"); got != "Bearer" {
			t.Fatalf("WWW-Authenticate = %q, want Bearer", got)
		}
	})

	t.Run("unknown username", func(t *testing.T) {
		req := formRequest("/api/v1/token", url.Values{
			"username": {"nobody"},
			"password": {"Password123!"},
		})
		w := httptest.NewRecorder()
		h.Token(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", w.Code)
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		req := formRequest("/api/v1/token", url.Values{"username": {"alice"}})
		w := httptest.NewRecorder()
		h.Token(w, req)

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
	})

	t.Run("disabled account", func(t *testing.T) {
		hash, _ := bcrypt.GenerateFromPassword([]byte("Password123!"), bcrypt.MinCost)
		_ = users.Create(context.Background(), &store.User{
			Username:     "mallory",
			PasswordHash: string(hash),
			Disabled:     true,
		})

		req := formRequest("/api/v1/token", url.Values{
			"username": {"mallory"},
			"password": {"Password123!"},
		})
		w := httptest.NewRecorder()
		h.Token(w, req)

		if w.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for disabled account, got %d", w.Code)
		}
	})
}
