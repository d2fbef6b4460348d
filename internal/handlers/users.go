package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
)

// RefreshCookie is the cookie carrying the refresh credential.
const RefreshCookie = "refreshToken"

// bcrypt only hashes the first 72 bytes and rejects longer input.
const (
	maxPasswordBytes = 72
	passwordTooLong  = "password must be at most 72 bytes"
)

// ChannelProfiles composes the public channel page of a user.
type ChannelProfiles interface {
	ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
}

// UserHandler implements account, session and channel endpoints.
type UserHandler struct {
	Users          UserStore
	Sessions       SessionManager
	Profiles       ChannelProfiles
	Media          media.Gateway
	Stager         Stager
	MaxUploadBytes int64
	SecureCookies  bool
	NowFunc        func() time.Time
}

// Register handles POST /api/v1/users/register.
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	form, err := readMultipart(w, r, h.Stager, h.MaxUploadBytes, "avatar", "coverImage")
	if err != nil {
		respondError(ctx, w, err)
		return
	}
	defer form.cleanup(ctx)

	fullName := form.value("fullName")
	email := strings.ToLower(form.value("email"))
	username := strings.ToLower(form.value("username"))
	password := form.fields["password"]

	if fullName == "" || email == "" || username == "" || strings.TrimSpace(password) == "" {
		respondError(ctx, w, apperrors.BadRequest("all fields are required"))
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		respondError(ctx, w, apperrors.BadRequest("invalid email address"))
		return
	}
	if len(password) > maxPasswordBytes {
		respondError(ctx, w, apperrors.BadRequest(passwordTooLong))
		return
	}

	exists, err := h.Users.ExistsByUsernameOrEmail(ctx, username, email)
	if err != nil {
		respondError(ctx, w, storeError(err, "user not found", "unable to verify existing accounts"))
		return
	}
	if exists {
		respondError(ctx, w, apperrors.Conflict("user with email or username already exists"))
		return
	}

	avatarPath, ok := form.files["avatar"]
	if !ok {
		respondError(ctx, w, apperrors.BadRequest("avatar file is required"))
		return
	}

	var uploaded []media.Asset
	discard := func() {
		for _, asset := range uploaded {
			h.deleteImage(ctx, asset.PublicID)
		}
	}

	avatar, err := h.Media.Upload(ctx, avatarPath, media.KindImage)
	if err != nil {
		respondError(ctx, w, uploadError(ctx, "avatar", err))
		return
	}
	uploaded = append(uploaded, avatar)

	var cover media.Asset
	if coverPath, ok := form.files["coverImage"]; ok {
		cover, err = h.Media.Upload(ctx, coverPath, media.KindImage)
		if err != nil {
			discard()
			respondError(ctx, w, uploadError(ctx, "cover image", err))
			return
		}
		uploaded = append(uploaded, cover)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		discard()
		respondError(ctx, w, apperrors.Internal("failed to secure password", err))
		return
	}

	now := h.now()
	user := models.User{
		ID:         models.NewID(),
		Username:   username,
		Email:      email,
		FullName:   fullName,
		Avatar:     avatar.URL,
		CoverImage: cover.URL,
		Password:   string(hashed),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := ctx.Err(); err != nil {
		discard()
		respondError(ctx, w, apperrors.ClientClosedRequest("request cancelled by client", err))
		return
	}
	if err := h.Users.Create(ctx, user); err != nil {
		discard()
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apperrors.Conflict("user with email or username already exists"))
			return
		}
		respondError(ctx, w, storeError(err, "user not found", "something went wrong while registering the user"))
		return
	}

	logger.Info("user registered", "userId", user.ID)
	respond(ctx, w, http.StatusCreated, user, "User registered successfully")
}

// Login handles POST /api/v1/users/login. Either username or email identifies the account.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Username == "" && req.Email == "" {
		respondError(ctx, w, apperrors.BadRequest("username or email is required"))
		return
	}
	if req.Password == "" {
		respondError(ctx, w, apperrors.BadRequest("password is required"))
		return
	}

	user, err := h.Users.FindByLogin(ctx, req.Username, req.Email)
	if err != nil {
		respondError(ctx, w, storeError(err, "user does not exist", "unable to look up user"))
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logging.FromContext(ctx).Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, apperrors.Unauthorized("invalid user credentials"))
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, apperrors.Internal("failed to create session", err))
		return
	}

	h.setSessionCookies(w, tokens)
	respond(ctx, w, http.StatusOK, sessionResponse{
		User:         &user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "User logged in successfully")
}

// Logout handles POST /api/v1/users/logout.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Sessions.Revoke(ctx, actor(r)); err != nil {
		respondError(ctx, w, apperrors.Internal("failed to end session", err))
		return
	}

	h.clearSessionCookies(w)
	respond(ctx, w, http.StatusOK, nil, "User logged out")
}

// RefreshToken handles POST /api/v1/users/refresh-token. The refresh credential
// is read from its cookie, falling back to the JSON body.
func (h UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := ""
	if cookie, err := r.Cookie(RefreshCookie); err == nil {
		token = strings.TrimSpace(cookie.Value)
	}
	if token == "" && r.ContentLength != 0 {
		var req refreshRequest
		if err := decodeJSON(w, r, &req); err != nil {
			respondError(ctx, w, err)
			return
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		respondError(ctx, w, apperrors.Unauthorized("unauthorized request"))
		return
	}

	tokens, userID, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrRefreshTokenExpired), errors.Is(err, auth.ErrRefreshTokenReused):
			respondError(ctx, w, apperrors.Unauthorized("refresh token is expired or used"))
		case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrSessionNotFound):
			respondError(ctx, w, apperrors.Unauthorized("invalid refresh token"))
		default:
			respondError(ctx, w, apperrors.Internal("unable to refresh session", err))
		}
		return
	}

	logging.FromContext(ctx).Info("session refreshed", "userId", userID)
	h.setSessionCookies(w, tokens)
	respond(ctx, w, http.StatusOK, sessionResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "Access token refreshed")
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Users.FindByID(ctx, actor(r))
	if err != nil {
		respondError(ctx, w, storeError(err, "user not found", "unable to load user"))
		return
	}
	respond(ctx, w, http.StatusOK, user, "Current user fetched successfully")
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req changePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	if req.OldPassword == "" || strings.TrimSpace(req.NewPassword) == "" {
		respondError(ctx, w, apperrors.BadRequest("old and new password are required"))
		return
	}
	if len(req.NewPassword) > maxPasswordBytes {
		respondError(ctx, w, apperrors.BadRequest(passwordTooLong))
		return
	}

	user, err := h.Users.FindByID(ctx, actor(r))
	if err != nil {
		respondError(ctx, w, storeError(err, "user not found", "unable to load user"))
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)); err != nil {
		respondError(ctx, w, apperrors.BadRequest("invalid old password"))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(ctx, w, apperrors.Internal("failed to secure password", err))
		return
	}
	if err := h.Users.UpdatePassword(ctx, user.ID, string(hashed), h.now()); err != nil {
		respondError(ctx, w, storeError(err, "user not found", "failed to change password"))
		return
	}

	respond(ctx, w, http.StatusOK, nil, "Password changed successfully")
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req updateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, err)
		return
	}
	req.FullName = strings.TrimSpace(req.FullName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FullName == "" || req.Email == "" {
		respondError(ctx, w, apperrors.BadRequest("all fields are required"))
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(ctx, w, apperrors.BadRequest("invalid email address"))
		return
	}

	user, err := h.Users.UpdateDetails(ctx, actor(r), req.FullName, req.Email, h.now())
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, apperrors.Conflict("email is already in use"))
			return
		}
		respondError(ctx, w, storeError(err, "user not found", "failed to update account details"))
		return
	}

	respond(ctx, w, http.StatusOK, user, "Account details updated successfully")
}

// ChannelProfile handles GET /api/v1/users/c/{username}.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "username")))
	if username == "" {
		respondError(ctx, w, apperrors.BadRequest("username is missing"))
		return
	}

	profile, err := h.Profiles.ChannelProfile(ctx, username, actor(r))
	if err != nil {
		respondError(ctx, w, storeError(err, "channel does not exist", "unable to load channel"))
		return
	}
	respond(ctx, w, http.StatusOK, profile, "User channel fetched successfully")
}

func (h UserHandler) setSessionCookies(w http.ResponseWriter, tokens models.SessionTokens) {
	http.SetCookie(w, h.cookie(middleware.AccessCookie, tokens.AccessToken, tokens.AccessExpiresAt))
	http.SetCookie(w, h.cookie(RefreshCookie, tokens.RefreshToken, tokens.RefreshExpiresAt))
}

func (h UserHandler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessCookie, RefreshCookie} {
		cookie := h.cookie(name, "", time.Unix(0, 0))
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func (h UserHandler) cookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h UserHandler) deleteImage(ctx context.Context, publicID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := h.Media.Delete(ctx, publicID, media.KindImage); err != nil {
		logging.FromContext(ctx).Warn("discard uploaded image", "publicId", publicID, "error", err)
	}
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

// uploadError maps a media gateway failure for the named file.
func uploadError(ctx context.Context, what string, err error) error {
	switch {
	case ctx.Err() != nil:
		return apperrors.ClientClosedRequest("request cancelled by client", err)
	case errors.Is(err, media.ErrUnavailable):
		return apperrors.Internal("media storage is temporarily unavailable", err)
	default:
		return apperrors.Internal("failed to upload "+what, err)
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateAccountRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

type sessionResponse struct {
	User         *models.User `json:"user,omitempty"`
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
}
