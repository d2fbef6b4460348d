package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/videos"
)

type memoryUsers struct {
	mu        sync.Mutex
	byID      map[string]models.User
	createErr error
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{byID: make(map[string]models.User)}
}

func (s *memoryUsers) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.byID {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.byID[user.ID] = user
	return nil
}

func (s *memoryUsers) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *memoryUsers) FindByLogin(_ context.Context, username, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byID {
		if (username != "" && user.Username == username) || (email != "" && user.Email == email) {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *memoryUsers) ExistsByUsernameOrEmail(_ context.Context, username, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.byID {
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryUsers) UpdateDetails(_ context.Context, id, fullName, email string, updatedAt time.Time) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	user.FullName, user.Email, user.UpdatedAt = fullName, email, updatedAt
	s.byID[id] = user
	return user, nil
}

func (s *memoryUsers) UpdatePassword(_ context.Context, id, passwordHash string, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.byID[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Password, user.UpdatedAt = passwordHash, updatedAt
	s.byID[id] = user
	return nil
}

type fakeGateway struct {
	mu       sync.Mutex
	uploaded []string
	deleted  []string
	failKind media.Kind
}

func (g *fakeGateway) Upload(_ context.Context, localPath string, kind media.Kind) (media.Asset, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if kind == g.failKind {
		return media.Asset{}, errors.New("upload failed")
	}
	if _, err := os.Stat(localPath); err != nil {
		return media.Asset{}, err
	}
	publicID := fmt.Sprintf("%s/%d", kind, len(g.uploaded)+1)
	g.uploaded = append(g.uploaded, publicID)
	return media.Asset{URL: "https://cdn.test/" + publicID, PublicID: publicID}, nil
}

func (g *fakeGateway) Delete(_ context.Context, publicID string, _ media.Kind) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deleted = append(g.deleted, publicID)
	return nil
}

type memoryTweets struct {
	mu   sync.Mutex
	byID map[string]models.Tweet
}

func (s *memoryTweets) Create(_ context.Context, tweet models.Tweet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[tweet.ID] = tweet
	return nil
}

func (s *memoryTweets) FindByID(_ context.Context, id string) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tweet, ok := s.byID[id]
	if !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	return tweet, nil
}

func (s *memoryTweets) UpdateContent(_ context.Context, tweet models.Tweet) (models.Tweet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[tweet.ID]; !ok {
		return models.Tweet{}, repositories.ErrNotFound
	}
	s.byID[tweet.ID] = tweet
	return tweet, nil
}

func (s *memoryTweets) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.byID, id)
	return nil
}

type memoryComments struct {
	mu     sync.Mutex
	byID   map[string]models.Comment
	videos map[string]bool
}

func (s *memoryComments) Create(_ context.Context, comment models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.videos[comment.Video] {
		return repositories.ErrNotFound
	}
	s.byID[comment.ID] = comment
	return nil
}

func (s *memoryComments) FindByID(_ context.Context, id string) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment, ok := s.byID[id]
	if !ok {
		return models.Comment{}, repositories.ErrNotFound
	}
	return comment, nil
}

func (s *memoryComments) UpdateContent(_ context.Context, comment models.Comment) (models.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[comment.ID] = comment
	return comment, nil
}

func (s *memoryComments) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

type memoryPlaylists struct {
	mu     sync.Mutex
	byID   map[string]models.Playlist
	videos map[string]bool
}

func (s *memoryPlaylists) Create(_ context.Context, playlist models.Playlist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[playlist.ID] = playlist
	return nil
}

func (s *memoryPlaylists) FindByID(_ context.Context, id string) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	playlist, ok := s.byID[id]
	if !ok {
		return models.Playlist{}, repositories.ErrNotFound
	}
	playlist.Videos = append([]string{}, playlist.Videos...)
	return playlist, nil
}

func (s *memoryPlaylists) Update(_ context.Context, playlist models.Playlist) (models.Playlist, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[playlist.ID] = playlist
	return playlist, nil
}

func (s *memoryPlaylists) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
	return nil
}

func (s *memoryPlaylists) AddVideo(_ context.Context, playlistID, videoID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.videos[videoID] {
		return repositories.ErrNotFound
	}
	playlist := s.byID[playlistID]
	playlist.Videos = append(playlist.Videos, videoID)
	s.byID[playlistID] = playlist
	return nil
}

func (s *memoryPlaylists) RemoveVideo(_ context.Context, playlistID, videoID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	playlist := s.byID[playlistID]
	kept := playlist.Videos[:0]
	var removed int64
	for _, id := range playlist.Videos {
		if id == videoID {
			removed++
			continue
		}
		kept = append(kept, id)
	}
	if removed == 0 {
		return 0, repositories.ErrNotFound
	}
	playlist.Videos = kept
	s.byID[playlistID] = playlist
	return removed, nil
}

// memoryEdges toggles like and subscription edges over a fixed set of targets.
type memoryEdges struct {
	mu      sync.Mutex
	edges   map[string]bool
	targets map[string]bool
}

func (e *memoryEdges) flip(key, target string) (models.ToggleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.targets[target] {
		return "", repositories.ErrNotFound
	}
	if e.edges[key] {
		delete(e.edges, key)
		return models.ToggleRemoved, nil
	}
	e.edges[key] = true
	return models.ToggleAdded, nil
}

type likeEdges struct{ *memoryEdges }

func (l likeEdges) Toggle(_ context.Context, target models.LikeTarget, userID string) (models.ToggleResult, error) {
	return l.flip(string(target.Kind)+":"+target.ID+":"+userID, target.ID)
}

type subscriptionEdges struct{ *memoryEdges }

func (s subscriptionEdges) Toggle(_ context.Context, subscriberID, channelID string) (models.ToggleResult, error) {
	if subscriberID == channelID {
		return "", fmt.Errorf("%w: cannot subscribe to own channel", repositories.ErrInvalid)
	}
	return s.flip(subscriberID+":"+channelID, channelID)
}

// stubViews answers read-model queries with canned data and records listing filters.
type stubViews struct {
	mu         sync.Mutex
	profiles   map[string]models.ChannelProfile
	lastFilter repositories.VideoFilter
}

func (v *stubViews) ChannelProfile(_ context.Context, username, viewerID string) (models.ChannelProfile, error) {
	profile, ok := v.profiles[username]
	if !ok {
		return models.ChannelProfile{}, repositories.ErrNotFound
	}
	profile.IsSubscribed = viewerID != ""
	return profile, nil
}

func (v *stubViews) VideoDetail(_ context.Context, videoID, _ string) (models.VideoDetail, error) {
	return models.VideoDetail{VideoView: models.VideoView{ID: videoID}}, nil
}

func (v *stubViews) ListVideos(_ context.Context, filter repositories.VideoFilter) (models.Page[models.VideoView], error) {
	v.mu.Lock()
	v.lastFilter = filter
	v.mu.Unlock()
	return models.NewPage[models.VideoView](nil, 0, filter.Page), nil
}

func (v *stubViews) OwnerVideos(context.Context, string) ([]models.VideoView, error) {
	return nil, nil
}

func (v *stubViews) PlaylistDetail(_ context.Context, playlistID string) (models.PlaylistDetail, error) {
	return models.PlaylistDetail{ID: playlistID}, nil
}

func (v *stubViews) UserPlaylistsSummary(context.Context, string) ([]models.PlaylistSummary, error) {
	return nil, nil
}

func (v *stubViews) LikedVideos(context.Context, string) ([]models.VideoView, error) {
	return nil, nil
}

func (v *stubViews) CommentsForVideo(_ context.Context, query repositories.CommentQuery) (models.Page[models.CommentView], error) {
	return models.NewPage[models.CommentView](nil, 0, query.Page), nil
}

func (v *stubViews) SubscriberList(context.Context, string) ([]models.SubscriberEntry, error) {
	return nil, nil
}

func (v *stubViews) SubscribedChannels(context.Context, string) ([]models.ChannelEntry, error) {
	return nil, nil
}

func (v *stubViews) UserTweets(context.Context, string) ([]models.TweetView, error) {
	return nil, nil
}

// stubWorkflows records the publish input and checks the staged files exist
// while the workflow runs.
type stubWorkflows struct {
	published  videos.PublishInput
	stagedSeen bool
	err        error
}

func (s *stubWorkflows) Publish(_ context.Context, in videos.PublishInput) (models.Video, error) {
	s.published = in
	_, videoErr := os.Stat(in.VideoPath)
	_, thumbErr := os.Stat(in.ThumbnailPath)
	s.stagedSeen = videoErr == nil && thumbErr == nil
	if s.err != nil {
		return models.Video{}, s.err
	}
	return models.Video{ID: models.NewID(), Title: in.Title, Owner: in.OwnerID}, nil
}

func (s *stubWorkflows) Update(_ context.Context, actorID, videoID string, in videos.UpdateInput) (models.Video, error) {
	return models.Video{ID: videoID, Title: in.Title, Description: in.Description, Owner: actorID}, nil
}

func (s *stubWorkflows) TogglePublish(_ context.Context, actorID, videoID string) (models.Video, error) {
	return models.Video{ID: videoID, Owner: actorID}, nil
}

func (s *stubWorkflows) Delete(context.Context, string, string) error {
	return s.err
}

type stubCounter struct{}

func (stubCounter) IncrementViews(context.Context, string, string) (int64, error) {
	return 1, nil
}

type stubLimiter struct {
	mu      sync.Mutex
	allowed int
}

func (l *stubLimiter) Allow(context.Context, string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowed <= 0 {
		return false
	}
	l.allowed--
	return true
}

type testEnv struct {
	router    http.Handler
	sessions  *auth.Manager
	tokens    *auth.InMemoryTokenStore
	users     *memoryUsers
	gateway   *fakeGateway
	tweets    *memoryTweets
	comments  *memoryComments
	playlists *memoryPlaylists
	views     *stubViews
	workflows *stubWorkflows
	uploadDir string
	videoID   string
}

func newTestManager() (*auth.Manager, *auth.InMemoryTokenStore) {
	store := auth.NewInMemoryTokenStore()
	manager := auth.NewManager(auth.Options{
		AccessSecret:  "access-secret",
		AccessTTL:     time.Minute,
		RefreshSecret: "refresh-secret",
		RefreshTTL:    time.Hour,
	}, store)
	return manager, store
}

func newTestEnv(t *testing.T, limiter *stubLimiter) *testEnv {
	t.Helper()

	manager, tokens := newTestManager()
	videoID := models.NewID()
	env := &testEnv{
		sessions:  manager,
		tokens:    tokens,
		users:     newMemoryUsers(),
		gateway:   &fakeGateway{},
		tweets:    &memoryTweets{byID: map[string]models.Tweet{}},
		comments:  &memoryComments{byID: map[string]models.Comment{}, videos: map[string]bool{videoID: true}},
		playlists: &memoryPlaylists{byID: map[string]models.Playlist{}, videos: map[string]bool{videoID: true}},
		views:     &stubViews{profiles: map[string]models.ChannelProfile{}},
		workflows: &stubWorkflows{},
		uploadDir: t.TempDir(),
		videoID:   videoID,
	}
	edges := &memoryEdges{edges: map[string]bool{}, targets: map[string]bool{videoID: true}}

	deps := Dependencies{
		Logger:         slog.New(slog.NewJSONHandler(io.Discard, nil)),
		Verifier:       manager,
		Users:          env.users,
		Sessions:       manager,
		Videos:         stubCounter{},
		Workflows:      env.workflows,
		Comments:       env.comments,
		Tweets:         env.tweets,
		Playlists:      env.playlists,
		Likes:          likeEdges{edges},
		Subscriptions:  subscriptionEdges{edges},
		Views:          env.views,
		Media:          env.gateway,
		Stager:         media.NewStager(env.uploadDir, 1<<20),
		MaxUploadBytes: 1 << 20,
	}
	if limiter != nil {
		deps.AuthLimiter = limiter
	}
	env.router = NewRouter(deps)
	return env
}

// signIn creates a user and returns an access token for it.
func (e *testEnv) signIn(t *testing.T, username string) (string, string) {
	t.Helper()

	user := models.User{ID: models.NewID(), Username: username, Email: username + "@example.com", Password: "!"}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	tokens, err := e.sessions.Issue(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("issue tokens: %v", err)
	}
	return user.ID, tokens.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
	Errors     []string        `json:"errors"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()

	var env envelope
	if err := json.NewDecoder(rec.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if env.StatusCode != rec.Code {
		t.Fatalf("envelope status %d does not match response status %d", env.StatusCode, rec.Code)
	}
	if data != nil {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("decode data: %v", err)
		}
	}
	return env
}

type formFile struct {
	field, name, content string
}

func multipartBody(t *testing.T, fields map[string]string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := io.WriteString(part, f.content); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func stagedFiles(t *testing.T, dir string) []string {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read upload dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names
}
