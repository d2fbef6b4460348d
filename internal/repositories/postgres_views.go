package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

// Sortable fields exposed to clients, mapped to columns.
var (
	videoSortColumns = map[string]string{
		"createdAt": "v.created_at",
		"updatedAt": "v.updated_at",
		"views":     "v.views",
		"duration":  "v.duration",
		"title":     "v.title",
	}
	commentSortColumns = map[string]string{
		"createdAt": "c.created_at",
		"updatedAt": "c.updated_at",
	}
)

const videoViewColumns = `v.id, v.title, v.description, v.video_file, v.thumbnail, v.duration, v.views, v.is_published, v.created_at, v.updated_at, u.id, u.username, u.avatar`

func scanVideoView(row scanner, extra ...any) (models.VideoView, error) {
	var v models.VideoView
	dest := []any{&v.ID, &v.Title, &v.Description, &v.VideoFile, &v.Thumbnail, &v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt,
		&v.Owner.ID, &v.Owner.Username, &v.Owner.Avatar}
	err := row.Scan(append(dest, extra...)...)
	return v, err
}

// PostgresViewRepository composes read models with joins and read-time aggregates.
type PostgresViewRepository struct {
	pool db.Pool
}

// NewPostgresViewRepository constructs a view repository backed by PostgreSQL.
func NewPostgresViewRepository(pool db.Pool) *PostgresViewRepository {
	return &PostgresViewRepository{pool: pool}
}

// ChannelProfile returns the public profile of username with its subscription
// counts. IsSubscribed is false when viewerID is empty.
func (r *PostgresViewRepository) ChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ChannelProfile{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var p models.ChannelProfile
	err = conn.QueryRow(ctx, `
        SELECT u.id, u.username, u.email, u.full_name, u.avatar, u.cover_image, u.created_at,
               (SELECT count(*) FROM subscriptions s WHERE s.channel_id = u.id),
               (SELECT count(*) FROM subscriptions s WHERE s.subscriber_id = u.id),
               EXISTS (SELECT 1 FROM subscriptions s WHERE s.channel_id = u.id AND s.subscriber_id = $2)
        FROM users u
        WHERE u.username = $1
    `, username, viewerID).Scan(&p.ID, &p.Username, &p.Email, &p.FullName, &p.Avatar, &p.CoverImage, &p.CreatedAt,
		&p.SubscribersCount, &p.ChannelsSubscribedToCount, &p.IsSubscribed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ChannelProfile{}, ErrNotFound
		}
		return models.ChannelProfile{}, fmt.Errorf("select channel profile: %w", err)
	}

	return p, nil
}

// VideoDetail returns a video with its owner and like aggregates relative to viewerID.
// Unpublished videos are only visible to their owner.
func (r *PostgresViewRepository) VideoDetail(ctx context.Context, videoID, viewerID string) (models.VideoDetail, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.VideoDetail{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var detail models.VideoDetail
	detail.VideoView, err = scanVideoView(conn.QueryRow(ctx, `
        SELECT `+videoViewColumns+`,
               (SELECT count(*) FROM likes l WHERE l.target_kind = 'video' AND l.target_id = v.id),
               EXISTS (SELECT 1 FROM likes l WHERE l.target_kind = 'video' AND l.target_id = v.id AND l.liked_by = $2)
        FROM videos v
        JOIN users u ON u.id = v.owner_id
        WHERE v.id = $1 AND (v.is_published OR v.owner_id = $2)
    `, videoID, viewerID), &detail.TotalLikes, &detail.IsLikedByUser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.VideoDetail{}, ErrNotFound
		}
		return models.VideoDetail{}, fmt.Errorf("select video detail: %w", err)
	}

	return detail, nil
}

// ListVideos returns one page of videos matching filter. Ordering always ends with
// created_at and id in the requested direction so pages never overlap.
func (r *PostgresViewRepository) ListVideos(ctx context.Context, filter VideoFilter) (models.Page[models.VideoView], error) {
	page := filter.Page.Normalize()

	var (
		where []string
		args  []any
	)
	addArg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !(filter.IncludeUnpublished && filter.OwnerID != "") {
		where = append(where, "v.is_published")
	}
	if filter.OwnerID != "" {
		where = append(where, "v.owner_id = "+addArg(filter.OwnerID))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		p := addArg("%" + escapeLike(q) + "%")
		where = append(where, fmt.Sprintf("(v.title ILIKE %s OR v.description ILIKE %s)", p, p))
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}
	orderClause := orderBy(videoSortColumns, filter.SortBy, filter.SortDir, "v")

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Page[models.VideoView]{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var total int64
	if err := conn.QueryRow(ctx, `SELECT count(*) FROM videos v `+whereClause, args...).Scan(&total); err != nil {
		return models.Page[models.VideoView]{}, fmt.Errorf("count videos: %w", err)
	}

	limitArg := addArg(page.Limit)
	offsetArg := addArg(page.Offset())
	docs, err := collectVideoViews(ctx, conn, `
        SELECT `+videoViewColumns+`
        FROM videos v
        JOIN users u ON u.id = v.owner_id
        `+whereClause+`
        `+orderClause+`
        LIMIT `+limitArg+` OFFSET `+offsetArg, args...)
	if err != nil {
		return models.Page[models.VideoView]{}, err
	}

	return models.NewPage(docs, total, page), nil
}

// OwnerVideos returns every video of ownerID, published or not, newest first.
func (r *PostgresViewRepository) OwnerVideos(ctx context.Context, ownerID string) ([]models.VideoView, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return collectVideoViews(ctx, conn, `
        SELECT `+videoViewColumns+`
        FROM videos v
        JOIN users u ON u.id = v.owner_id
        WHERE v.owner_id = $1
        ORDER BY v.created_at DESC, v.id DESC
    `, ownerID)
}

// PlaylistDetail returns a playlist with its videos in sequence order.
func (r *PostgresViewRepository) PlaylistDetail(ctx context.Context, playlistID string) (models.PlaylistDetail, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.PlaylistDetail{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var detail models.PlaylistDetail
	err = conn.QueryRow(ctx, `
        SELECT p.id, p.name, p.description, p.created_at, p.updated_at, u.id, u.username, u.avatar
        FROM playlists p
        JOIN users u ON u.id = p.owner_id
        WHERE p.id = $1
    `, playlistID).Scan(&detail.ID, &detail.Name, &detail.Description, &detail.CreatedAt, &detail.UpdatedAt,
		&detail.PlaylistOwner.ID, &detail.PlaylistOwner.Username, &detail.PlaylistOwner.Avatar)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.PlaylistDetail{}, ErrNotFound
		}
		return models.PlaylistDetail{}, fmt.Errorf("select playlist: %w", err)
	}

	detail.Videos, err = collectVideoViews(ctx, conn, `
        SELECT `+videoViewColumns+`
        FROM playlist_videos pv
        JOIN videos v ON v.id = pv.video_id
        JOIN users u ON u.id = v.owner_id
        WHERE pv.playlist_id = $1
        ORDER BY pv.id
    `, playlistID)
	if err != nil {
		return models.PlaylistDetail{}, err
	}

	return detail, nil
}

// UserPlaylistsSummary returns every playlist of userID with its video count,
// summed views and the thumbnail of its first video.
func (r *PostgresViewRepository) UserPlaylistsSummary(ctx context.Context, userID string) ([]models.PlaylistSummary, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT p.id, p.name, p.description, p.created_at, p.updated_at,
               u.id, u.username, u.avatar,
               count(v.id),
               COALESCE(sum(v.views), 0)::BIGINT,
               (SELECT fv.thumbnail
                  FROM playlist_videos fpv
                  JOIN videos fv ON fv.id = fpv.video_id
                 WHERE fpv.playlist_id = p.id
                 ORDER BY fpv.id
                 LIMIT 1)
        FROM playlists p
        JOIN users u ON u.id = p.owner_id
        LEFT JOIN playlist_videos pv ON pv.playlist_id = p.id
        LEFT JOIN videos v ON v.id = pv.video_id
        WHERE p.owner_id = $1
        GROUP BY p.id, p.name, p.description, p.created_at, p.updated_at, u.id, u.username, u.avatar
        ORDER BY p.created_at DESC, p.id DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query playlist summaries: %w", err)
	}
	defer rows.Close()

	summaries := []models.PlaylistSummary{}
	for rows.Next() {
		var s models.PlaylistSummary
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.CreatedAt, &s.UpdatedAt,
			&s.Owner.ID, &s.Owner.Username, &s.Owner.Avatar,
			&s.VideosCount, &s.TotalViews, &s.Thumbnail); err != nil {
			return nil, fmt.Errorf("scan playlist summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playlist summaries: %w", err)
	}

	return summaries, nil
}

// LikedVideos returns the videos viewerID liked, most recent like first.
func (r *PostgresViewRepository) LikedVideos(ctx context.Context, viewerID string) ([]models.VideoView, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	return collectVideoViews(ctx, conn, `
        SELECT `+videoViewColumns+`
        FROM likes l
        JOIN videos v ON v.id = l.target_id
        JOIN users u ON u.id = v.owner_id
        WHERE l.liked_by = $1
          AND l.target_kind = 'video'
          AND (v.is_published OR v.owner_id = $1)
        ORDER BY l.created_at DESC, l.id DESC
    `, viewerID)
}

// CommentsForVideo returns one page of comments on a video.
func (r *PostgresViewRepository) CommentsForVideo(ctx context.Context, query CommentQuery) (models.Page[models.CommentView], error) {
	page := query.Page.Normalize()

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Page[models.CommentView]{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := requireRow(ctx, conn, "videos", query.VideoID); err != nil {
		return models.Page[models.CommentView]{}, err
	}

	var total int64
	if err := conn.QueryRow(ctx, `SELECT count(*) FROM comments WHERE video_id = $1`, query.VideoID).Scan(&total); err != nil {
		return models.Page[models.CommentView]{}, fmt.Errorf("count comments: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT c.id, c.content, c.video_id, c.created_at, c.updated_at, u.id, u.username, u.avatar
        FROM comments c
        JOIN users u ON u.id = c.owner_id
        WHERE c.video_id = $1
        `+orderBy(commentSortColumns, query.SortBy, query.SortDir, "c")+`
        LIMIT $2 OFFSET $3
    `, query.VideoID, page.Limit, page.Offset())
	if err != nil {
		return models.Page[models.CommentView]{}, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	var docs []models.CommentView
	for rows.Next() {
		var c models.CommentView
		if err := rows.Scan(&c.ID, &c.Content, &c.Video, &c.CreatedAt, &c.UpdatedAt, &c.Owner.ID, &c.Owner.Username, &c.Owner.Avatar); err != nil {
			return models.Page[models.CommentView]{}, fmt.Errorf("scan comment: %w", err)
		}
		docs = append(docs, c)
	}
	if err := rows.Err(); err != nil {
		return models.Page[models.CommentView]{}, fmt.Errorf("iterate comments: %w", err)
	}

	return models.NewPage(docs, total, page), nil
}

// SubscriberList returns the users subscribed to channelID, newest first.
func (r *PostgresViewRepository) SubscriberList(ctx context.Context, channelID string) ([]models.SubscriberEntry, error) {
	entries, err := r.edgeList(ctx, channelID, `
        SELECT u.id, u.username, u.avatar, s.created_at
        FROM subscriptions s
        JOIN users u ON u.id = s.subscriber_id
        WHERE s.channel_id = $1
        ORDER BY s.created_at DESC, s.id DESC
    `)
	if err != nil {
		return nil, err
	}

	out := make([]models.SubscriberEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.SubscriberEntry{Subscriber: e.user, SubscribedAt: e.at})
	}
	return out, nil
}

// SubscribedChannels returns the channels subscriberID is subscribed to, newest first.
func (r *PostgresViewRepository) SubscribedChannels(ctx context.Context, subscriberID string) ([]models.ChannelEntry, error) {
	entries, err := r.edgeList(ctx, subscriberID, `
        SELECT u.id, u.username, u.avatar, s.created_at
        FROM subscriptions s
        JOIN users u ON u.id = s.channel_id
        WHERE s.subscriber_id = $1
        ORDER BY s.created_at DESC, s.id DESC
    `)
	if err != nil {
		return nil, err
	}

	out := make([]models.ChannelEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.ChannelEntry{Channel: e.user, SubscribedAt: e.at})
	}
	return out, nil
}

// UserTweets returns the tweets of userID with their like counts, newest first.
func (r *PostgresViewRepository) UserTweets(ctx context.Context, userID string) ([]models.TweetView, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := requireRow(ctx, conn, "users", userID); err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, `
        SELECT t.id, t.content, t.created_at, t.updated_at, u.id, u.username, u.avatar,
               (SELECT count(*) FROM likes l WHERE l.target_kind = 'tweet' AND l.target_id = t.id)
        FROM tweets t
        JOIN users u ON u.id = t.owner_id
        WHERE t.owner_id = $1
        ORDER BY t.created_at DESC, t.id DESC
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query tweets: %w", err)
	}
	defer rows.Close()

	tweets := []models.TweetView{}
	for rows.Next() {
		var t models.TweetView
		if err := rows.Scan(&t.ID, &t.Content, &t.CreatedAt, &t.UpdatedAt, &t.Owner.ID, &t.Owner.Username, &t.Owner.Avatar, &t.LikesCount); err != nil {
			return nil, fmt.Errorf("scan tweet: %w", err)
		}
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tweets: %w", err)
	}

	return tweets, nil
}

type edgeRow struct {
	user models.OwnerSummary
	at   time.Time
}

func (r *PostgresViewRepository) edgeList(ctx context.Context, userID, query string) ([]edgeRow, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if err := requireRow(ctx, conn, "users", userID); err != nil {
		return nil, err
	}

	rows, err := conn.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []edgeRow
	for rows.Next() {
		var e edgeRow
		if err := rows.Scan(&e.user.ID, &e.user.Username, &e.user.Avatar, &e.at); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}

	return out, nil
}

func collectVideoViews(ctx context.Context, conn *pgxpool.Conn, query string, args ...any) ([]models.VideoView, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query videos: %w", err)
	}
	defer rows.Close()

	videos := []models.VideoView{}
	for rows.Next() {
		v, err := scanVideoView(rows)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}

// orderBy builds an ORDER BY clause from a whitelisted sort field, falling back to
// createdAt, and appends the created_at/id tie-break in the same direction.
func orderBy(columns map[string]string, field string, dir models.SortDirection, alias string) string {
	column, ok := columns[field]
	if !ok {
		column = columns["createdAt"]
	}
	direction := "DESC"
	if dir == models.SortAsc {
		direction = "ASC"
	}

	clause := fmt.Sprintf("ORDER BY %s %s", column, direction)
	createdAt := alias + ".created_at"
	if column != createdAt {
		clause += fmt.Sprintf(", %s %s", createdAt, direction)
	}
	return clause + fmt.Sprintf(", %s.id %s", alias, direction)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike makes s match literally inside an ILIKE pattern.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

var _ ViewRepository = (*PostgresViewRepository)(nil)
