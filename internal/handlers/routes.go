package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/media"
	"github.com/vidtube/backend/internal/metrics"
	"github.com/vidtube/backend/internal/middleware"
	"github.com/vidtube/backend/internal/repositories"
	"github.com/vidtube/backend/internal/response"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Logger      *slog.Logger
	DB          Pinger
	Verifier    middleware.TokenVerifier
	AuthLimiter middleware.RateLimiter

	Users         UserStore
	Sessions      SessionManager
	Videos        ViewCounter
	Workflows     VideoWorkflows
	Comments      CommentStore
	Tweets        TweetStore
	Playlists     PlaylistStore
	Likes         LikeToggler
	Subscriptions SubscriptionToggler
	Views         repositories.ViewRepository

	Media          media.Gateway
	Stager         Stager
	MaxUploadBytes int64
	SecureCookies  bool
	CORSOrigin     string
}

// NewRouter wires every endpoint under /api/v1 plus the operational endpoints.
func NewRouter(deps Dependencies) http.Handler {
	users := UserHandler{
		Users:          deps.Users,
		Sessions:       deps.Sessions,
		Profiles:       deps.Views,
		Media:          deps.Media,
		Stager:         deps.Stager,
		MaxUploadBytes: deps.MaxUploadBytes,
		SecureCookies:  deps.SecureCookies,
	}
	videos := VideoHandler{
		Views:          deps.Views,
		Workflows:      deps.Workflows,
		Counter:        deps.Videos,
		Stager:         deps.Stager,
		MaxUploadBytes: deps.MaxUploadBytes,
	}
	likes := LikeHandler{Likes: deps.Likes, Views: deps.Views}
	subscriptions := SubscriptionHandler{Subscriptions: deps.Subscriptions, Views: deps.Views}
	playlists := PlaylistHandler{Playlists: deps.Playlists, Views: deps.Views}
	comments := CommentHandler{Comments: deps.Comments, Views: deps.Views}
	tweets := TweetHandler{Tweets: deps.Tweets, Views: deps.Views}
	health := HealthHandler{DB: deps.DB}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	authn := middleware.Authenticator{Verifier: deps.Verifier}
	limit := func(scope string) func(http.Handler) http.Handler {
		if deps.AuthLimiter == nil {
			return func(next http.Handler) http.Handler { return next }
		}
		return middleware.RateLimit(deps.AuthLimiter, scope)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.Metrics)
	r.Use(chimiddleware.StripSlashes)
	r.Use(middleware.CORS(deps.CORSOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(r.Context(), w, apperrors.NotFound("route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.JSON(r.Context(), w, http.StatusMethodNotAllowed, response.ErrorEnvelope{
			StatusCode: http.StatusMethodNotAllowed,
			Message:    "method not allowed",
			Errors:     []string{},
		})
	})

	r.Get("/healthz", health.Handle)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/users", func(r chi.Router) {
			r.With(limit("register")).Post("/register", users.Register)
			r.With(limit("login")).Post("/login", users.Login)
			r.With(limit("refresh")).Post("/refresh-token", users.RefreshToken)
			r.With(authn.Optional).Get("/c/{username}", users.ChannelProfile)

			r.Group(func(r chi.Router) {
				r.Use(authn.Required)
				r.Post("/logout", users.Logout)
				r.Get("/current-user", users.CurrentUser)
				r.Post("/change-password", users.ChangePassword)
				r.Patch("/update-account", users.UpdateAccount)
			})
		})

		r.Route("/videos", func(r chi.Router) {
			r.With(authn.Optional).Get("/", videos.List)

			r.Group(func(r chi.Router) {
				r.Use(authn.Required)
				r.Get("/u/user-videos", videos.Mine)
				r.Get("/{videoId}", videos.Get)
				r.Post("/add-view/{videoId}", videos.AddView)
				r.Post("/upload-video", videos.Upload)
				r.Patch("/update-video/{videoId}", videos.UpdateVideo)
				r.Patch("/toggle-publish/{videoId}", videos.TogglePublish)
				r.Delete("/delete-video/{videoId}", videos.Delete)
			})
		})

		r.Route("/likes", func(r chi.Router) {
			r.Use(authn.Required)
			r.Get("/videos", likes.LikedVideos)
			r.Post("/{videoId}", likes.ToggleVideo)
			r.Post("/c/{commentId}", likes.ToggleComment)
			r.Post("/t/{tweetId}", likes.ToggleTweet)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.With(authn.Required).Post("/subscribe/{channelId}", subscriptions.Toggle)
			r.Get("/subscriber-list/{channelId}", subscriptions.SubscriberList)
			r.Get("/channel-list/{subscriberId}", subscriptions.ChannelList)
		})

		r.Route("/playlists", func(r chi.Router) {
			r.Get("/p/{userId}", playlists.UserPlaylists)
			r.Get("/{playlistId}", playlists.Get)

			r.Group(func(r chi.Router) {
				r.Use(authn.Required)
				r.Get("/me", playlists.Mine)
				r.Post("/create", playlists.Create)
				r.Post("/add/{playlistId}/{videoId}", playlists.AddVideo)
				r.Delete("/remove/{playlistId}/{videoId}", playlists.RemoveVideo)
				r.Patch("/{playlistId}", playlists.Update)
				r.Delete("/{playlistId}", playlists.Delete)
			})
		})

		r.Route("/comments", func(r chi.Router) {
			r.Get("/{videoId}", comments.List)

			r.Group(func(r chi.Router) {
				r.Use(authn.Required)
				r.Post("/add/{videoId}", comments.Add)
				r.Patch("/{commentId}", comments.Update)
				r.Delete("/{commentId}", comments.Delete)
			})
		})

		r.Route("/tweets", func(r chi.Router) {
			r.Use(authn.Required)
			r.Post("/create", tweets.Create)
			r.Get("/", tweets.Mine)
			r.Get("/user/{userId}", tweets.ListUser)
			r.Patch("/{tweetId}", tweets.Update)
			r.Delete("/{tweetId}", tweets.Delete)
		})
	})

	return r
}
