package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
)

var registerFields = map[string]string{
	"fullName": "Ada Lovelace",
	"email":    "Ada@Example.com",
	"username": "Ada",
	"password": "supersafe",
}

func register(t *testing.T, env *testEnv, fields map[string]string, files ...formFile) *httptest.ResponseRecorder {
	t.Helper()

	body, contentType := multipartBody(t, fields, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestUserHandlerRegister(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := register(t, env, registerFields,
		formFile{field: "avatar", name: "me.PNG", content: "avatar-bytes"},
		formFile{field: "coverImage", name: "cover.jpg", content: "cover-bytes"},
	)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status %d got %d: %s", http.StatusCreated, rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "supersafe") || strings.Contains(rec.Body.String(), `"password"`) {
		t.Fatalf("response leaks credentials: %s", rec.Body.String())
	}

	var user models.User
	decodeEnvelope(t, rec, &user)
	if user.Username != "ada" || user.Email != "ada@example.com" {
		t.Fatalf("expected lowercased identity, got %q %q", user.Username, user.Email)
	}
	if user.Avatar != "https://cdn.test/image/1" || user.CoverImage != "https://cdn.test/image/2" {
		t.Fatalf("unexpected media urls %q %q", user.Avatar, user.CoverImage)
	}

	stored, err := env.users.FindByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("expected user to be stored: %v", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.Password), []byte("supersafe")) != nil {
		t.Fatal("stored password is not hashed")
	}
	if left := stagedFiles(t, env.uploadDir); len(left) != 0 {
		t.Fatalf("expected staged files to be removed, found %v", left)
	}
}

func TestUserHandlerRegisterValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	rec := register(t, env, registerFields)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing avatar: expected 400 got %d", rec.Code)
	}

	missing := map[string]string{"fullName": "Ada", "email": "ada@example.com", "username": "ada"}
	rec = register(t, env, missing, formFile{field: "avatar", name: "a.png", content: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: expected 400 got %d", rec.Code)
	}

	rec = register(t, env, registerFields, formFile{field: "banner", name: "a.png", content: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unexpected file field: expected 400 got %d", rec.Code)
	}

	if len(env.gateway.uploaded) != 0 {
		t.Fatalf("validation failures must not reach the media store, uploaded %v", env.gateway.uploaded)
	}
	if left := stagedFiles(t, env.uploadDir); len(left) != 0 {
		t.Fatalf("expected staged files to be removed, found %v", left)
	}
}

func TestUserHandlerRegisterRejectsOverlongPassword(t *testing.T) {
	env := newTestEnv(t, nil)

	fields := map[string]string{}
	for k, v := range registerFields {
		fields[k] = v
	}
	fields["password"] = strings.Repeat("p", 80)

	rec := register(t, env, fields, formFile{field: "avatar", name: "a.png", content: "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400 got %d: %s", rec.Code, rec.Body.String())
	}
	if len(env.gateway.uploaded) != 0 {
		t.Fatalf("rejected registration must not upload, uploaded %v", env.gateway.uploaded)
	}
	if left := stagedFiles(t, env.uploadDir); len(left) != 0 {
		t.Fatalf("expected staged files to be removed, found %v", left)
	}
}

func TestUserHandlerRegisterConflict(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signIn(t, "ada")

	rec := register(t, env, registerFields, formFile{field: "avatar", name: "a.png", content: "x"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected status %d got %d", http.StatusConflict, rec.Code)
	}
	if len(env.gateway.uploaded) != 0 {
		t.Fatalf("conflicting registration must not upload, uploaded %v", env.gateway.uploaded)
	}
}

func TestUserHandlerRegisterDiscardsUploadsWhenStoreFails(t *testing.T) {
	env := newTestEnv(t, nil)
	env.users.createErr = errors.New("database down")

	rec := register(t, env, registerFields,
		formFile{field: "avatar", name: "a.png", content: "x"},
		formFile{field: "coverImage", name: "c.png", content: "y"},
	)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected status %d got %d", http.StatusInternalServerError, rec.Code)
	}
	if len(env.gateway.deleted) != 2 {
		t.Fatalf("expected both uploads to be discarded, deleted %v", env.gateway.deleted)
	}
}

func seedPasswordUser(t *testing.T, env *testEnv, username, password string) models.User {
	t.Helper()

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	user := models.User{ID: models.NewID(), Username: username, Email: username + "@example.com", Password: string(hashed)}
	if err := env.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func TestUserHandlerLogin(t *testing.T) {
	env := newTestEnv(t, nil)
	seedPasswordUser(t, env, "grace", "hopper123")

	cases := []struct {
		name   string
		body   loginRequest
		status int
	}{
		{name: "by username", body: loginRequest{Username: "Grace", Password: "hopper123"}, status: http.StatusOK},
		{name: "by email", body: loginRequest{Email: "grace@example.com", Password: "hopper123"}, status: http.StatusOK},
		{name: "unknown user", body: loginRequest{Username: "nobody", Password: "hopper123"}, status: http.StatusNotFound},
		{name: "wrong password", body: loginRequest{Username: "grace", Password: "nope"}, status: http.StatusUnauthorized},
		{name: "missing identity", body: loginRequest{Password: "hopper123"}, status: http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/users/login", "", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if tc.status != http.StatusOK {
				return
			}

			var session sessionResponse
			decodeEnvelope(t, rec, &session)
			if session.AccessToken == "" || session.RefreshToken == "" || session.User == nil {
				t.Fatalf("expected tokens and user, got %+v", session)
			}

			cookies := map[string]*http.Cookie{}
			for _, c := range rec.Result().Cookies() {
				cookies[c.Name] = c
			}
			access, refresh := cookies[middleware.AccessCookie], cookies[RefreshCookie]
			if access == nil || refresh == nil {
				t.Fatalf("expected session cookies, got %v", rec.Result().Cookies())
			}
			if !access.HttpOnly || !refresh.HttpOnly {
				t.Fatal("session cookies must be http only")
			}
		})
	}
}

func TestUserHandlerRefreshRotatesToken(t *testing.T) {
	env := newTestEnv(t, nil)
	userID, _ := env.signIn(t, "linus")
	tokens, err := env.sessions.Issue(context.Background(), userID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	req.AddCookie(&http.Cookie{Name: RefreshCookie, Value: tokens.RefreshToken})
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var session sessionResponse
	decodeEnvelope(t, rec, &session)
	if session.RefreshToken == "" || session.RefreshToken == tokens.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users/refresh-token", "", refreshRequest{RefreshToken: tokens.RefreshToken})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("replayed refresh token: expected 401 got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users/refresh-token", "", refreshRequest{RefreshToken: session.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("rotated refresh token from body: expected 200 got %d", rec.Code)
	}
}

func TestUserHandlerRefreshRequiresToken(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/refresh-token", nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users/refresh-token", "", refreshRequest{RefreshToken: "garbage"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("malformed token: expected 401 got %d", rec.Code)
	}
}

func TestUserHandlerLogout(t *testing.T) {
	env := newTestEnv(t, nil)
	userID, token := env.signIn(t, "ken")

	rec := env.do(t, http.MethodPost, "/api/v1/users/logout", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	if env.tokens.Has(userID) {
		t.Fatal("expected refresh token to be cleared")
	}
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 {
			t.Fatalf("expected cookie %s to be expired", c.Name)
		}
	}
}

func TestUserHandlerChangePassword(t *testing.T) {
	env := newTestEnv(t, nil)
	user := seedPasswordUser(t, env, "barbara", "liskov-old")
	tokens, err := env.sessions.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/api/v1/users/change-password", tokens.AccessToken, changePasswordRequest{OldPassword: "wrong", NewPassword: "liskov-new"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("wrong old password: expected 400 got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users/change-password", tokens.AccessToken, changePasswordRequest{OldPassword: "liskov-old", NewPassword: strings.Repeat("n", 73)})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("overlong new password: expected 400 got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users/change-password", tokens.AccessToken, changePasswordRequest{OldPassword: "liskov-old", NewPassword: "liskov-new"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/api/v1/users/login", "", loginRequest{Username: "barbara", Password: "liskov-new"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with new password: expected 200 got %d", rec.Code)
	}
}

func TestUserHandlerUpdateAccount(t *testing.T) {
	env := newTestEnv(t, nil)
	_, token := env.signIn(t, "alan")

	rec := env.do(t, http.MethodPatch, "/api/v1/users/update-account", token, updateAccountRequest{FullName: "Alan Turing"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing email: expected 400 got %d", rec.Code)
	}

	rec = env.do(t, http.MethodPatch, "/api/v1/users/update-account", token, updateAccountRequest{FullName: "Alan Turing", Email: "Alan@Bletchley.uk"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var user models.User
	decodeEnvelope(t, rec, &user)
	if user.FullName != "Alan Turing" || user.Email != "alan@bletchley.uk" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestUserHandlerUpdateAccountUnknownUser(t *testing.T) {
	env := newTestEnv(t, nil)
	tokens, err := env.sessions.Issue(context.Background(), models.NewID())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rec := env.do(t, http.MethodPatch, "/api/v1/users/update-account", tokens.AccessToken, updateAccountRequest{FullName: "Ghost", Email: "ghost@example.com"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", rec.Code)
	}
}

func TestUserHandlerChannelProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	env.views.profiles["ada"] = models.ChannelProfile{Username: "ada", SubscribersCount: 3}

	rec := env.do(t, http.MethodGet, "/api/v1/users/c/ADA", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200 got %d", rec.Code)
	}
	var profile models.ChannelProfile
	decodeEnvelope(t, rec, &profile)
	if profile.SubscribersCount != 3 || profile.IsSubscribed {
		t.Fatalf("unexpected anonymous profile %+v", profile)
	}

	_, token := env.signIn(t, "viewer")
	rec = env.do(t, http.MethodGet, "/api/v1/users/c/ada", token, nil)
	decodeEnvelope(t, rec, &profile)
	if !profile.IsSubscribed {
		t.Fatal("expected the viewer to be passed through optional auth")
	}

	rec = env.do(t, http.MethodGet, "/api/v1/users/c/nobody", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown channel: expected 404 got %d", rec.Code)
	}
}
