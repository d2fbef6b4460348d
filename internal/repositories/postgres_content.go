package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidtube/backend/internal/db"
	"github.com/vidtube/backend/internal/models"
)

const videoColumns = `id, owner_id, title, description, video_file, video_public_id, thumbnail, thumbnail_public_id, duration, views, is_published, created_at, updated_at`

func scanVideo(row scanner) (models.Video, error) {
	var v models.Video
	err := row.Scan(&v.ID, &v.Owner, &v.Title, &v.Description, &v.VideoFile, &v.VideoPublicID, &v.Thumbnail, &v.ThumbnailPublicID, &v.Duration, &v.Views, &v.IsPublished, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// PostgresVideoRepository provides PostgreSQL-backed persistence for videos.
type PostgresVideoRepository struct {
	pool db.Pool
}

// NewPostgresVideoRepository constructs a video repository backed by PostgreSQL.
func NewPostgresVideoRepository(pool db.Pool) *PostgresVideoRepository {
	return &PostgresVideoRepository{pool: pool}
}

// Create stores a new video record.
func (r *PostgresVideoRepository) Create(ctx context.Context, video models.Video) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO videos (`+videoColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
    `, video.ID, video.Owner, video.Title, video.Description, video.VideoFile, video.VideoPublicID, video.Thumbnail, video.ThumbnailPublicID,
		video.Duration, video.Views, video.IsPublished, video.CreatedAt, video.UpdatedAt)
	if err != nil {
		if mapped := classifyWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert video: %w", err)
	}

	return nil
}

// FindByID fetches a video by identifier.
func (r *PostgresVideoRepository) FindByID(ctx context.Context, id string) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	video, err := scanVideo(conn.QueryRow(ctx, `SELECT `+videoColumns+` FROM videos WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("select video: %w", err)
	}

	return video, nil
}

// Update writes the mutable fields of a video and returns the stored record.
func (r *PostgresVideoRepository) Update(ctx context.Context, video models.Video) (models.Video, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Video{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	updated, err := scanVideo(conn.QueryRow(ctx, `
        UPDATE videos
        SET title = $2,
            description = $3,
            thumbnail = $4,
            thumbnail_public_id = $5,
            is_published = $6,
            updated_at = $7
        WHERE id = $1
        RETURNING `+videoColumns,
		video.ID, video.Title, video.Description, video.Thumbnail, video.ThumbnailPublicID, video.IsPublished, video.UpdatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Video{}, ErrNotFound
		}
		return models.Video{}, fmt.Errorf("update video: %w", err)
	}

	return updated, nil
}

// IncrementViews bumps the view counter of a video the viewer is allowed to see
// and returns the new count.
func (r *PostgresVideoRepository) IncrementViews(ctx context.Context, id, viewerID string) (int64, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var views int64
	if err := conn.QueryRow(ctx, `
        UPDATE videos
        SET views = views + 1
        WHERE id = $1 AND (is_published OR owner_id = $2)
        RETURNING views
    `, id, viewerID).Scan(&views); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment video views: %w", err)
	}

	return views, nil
}

// Delete removes a video together with its comments, the likes on the video and
// on those comments, and its playlist entries.
func (r *PostgresVideoRepository) Delete(ctx context.Context, id string) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            DELETE FROM likes
            WHERE target_kind = 'comment'
              AND target_id IN (SELECT id FROM comments WHERE video_id = $1)
        `, id); err != nil {
			return fmt.Errorf("delete comment likes: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM likes WHERE target_kind = 'video' AND target_id = $1`, id); err != nil {
			return fmt.Errorf("delete video likes: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM comments WHERE video_id = $1`, id); err != nil {
			return fmt.Errorf("delete video comments: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM playlist_videos WHERE video_id = $1`, id); err != nil {
			return fmt.Errorf("delete playlist entries: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete video: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

const commentColumns = `id, video_id, owner_id, content, created_at, updated_at`

func scanComment(row scanner) (models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.Video, &c.Owner, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// PostgresCommentRepository provides PostgreSQL-backed persistence for comments.
type PostgresCommentRepository struct {
	pool db.Pool
}

// NewPostgresCommentRepository constructs a comment repository backed by PostgreSQL.
func NewPostgresCommentRepository(pool db.Pool) *PostgresCommentRepository {
	return &PostgresCommentRepository{pool: pool}
}

// Create stores a new comment. A missing video yields ErrNotFound.
func (r *PostgresCommentRepository) Create(ctx context.Context, comment models.Comment) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO comments (`+commentColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, comment.ID, comment.Video, comment.Owner, comment.Content, comment.CreatedAt, comment.UpdatedAt)
	if err != nil {
		if mapped := classifyWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert comment: %w", err)
	}

	return nil
}

// FindByID fetches a comment by identifier.
func (r *PostgresCommentRepository) FindByID(ctx context.Context, id string) (models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Comment{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	comment, err := scanComment(conn.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("select comment: %w", err)
	}

	return comment, nil
}

// UpdateContent rewrites the comment body.
func (r *PostgresCommentRepository) UpdateContent(ctx context.Context, comment models.Comment) (models.Comment, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Comment{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	updated, err := scanComment(conn.QueryRow(ctx, `
        UPDATE comments
        SET content = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+commentColumns, comment.ID, comment.Content, comment.UpdatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, fmt.Errorf("update comment: %w", err)
	}

	return updated, nil
}

// Delete removes a comment and the likes on it.
func (r *PostgresCommentRepository) Delete(ctx context.Context, id string) error {
	return deleteWithLikes(ctx, r.pool, models.LikeKindComment, "comments", id)
}

const tweetColumns = `id, owner_id, content, created_at, updated_at`

func scanTweet(row scanner) (models.Tweet, error) {
	var t models.Tweet
	err := row.Scan(&t.ID, &t.Owner, &t.Content, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// PostgresTweetRepository provides PostgreSQL-backed persistence for tweets.
type PostgresTweetRepository struct {
	pool db.Pool
}

// NewPostgresTweetRepository constructs a tweet repository backed by PostgreSQL.
func NewPostgresTweetRepository(pool db.Pool) *PostgresTweetRepository {
	return &PostgresTweetRepository{pool: pool}
}

// Create stores a new tweet.
func (r *PostgresTweetRepository) Create(ctx context.Context, tweet models.Tweet) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO tweets (`+tweetColumns+`)
        VALUES ($1, $2, $3, $4, $5)
    `, tweet.ID, tweet.Owner, tweet.Content, tweet.CreatedAt, tweet.UpdatedAt)
	if err != nil {
		if mapped := classifyWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert tweet: %w", err)
	}

	return nil
}

// FindByID fetches a tweet by identifier.
func (r *PostgresTweetRepository) FindByID(ctx context.Context, id string) (models.Tweet, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Tweet{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tweet, err := scanTweet(conn.QueryRow(ctx, `SELECT `+tweetColumns+` FROM tweets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tweet{}, ErrNotFound
		}
		return models.Tweet{}, fmt.Errorf("select tweet: %w", err)
	}

	return tweet, nil
}

// UpdateContent rewrites the tweet body.
func (r *PostgresTweetRepository) UpdateContent(ctx context.Context, tweet models.Tweet) (models.Tweet, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Tweet{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	updated, err := scanTweet(conn.QueryRow(ctx, `
        UPDATE tweets
        SET content = $2, updated_at = $3
        WHERE id = $1
        RETURNING `+tweetColumns, tweet.ID, tweet.Content, tweet.UpdatedAt))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Tweet{}, ErrNotFound
		}
		return models.Tweet{}, fmt.Errorf("update tweet: %w", err)
	}

	return updated, nil
}

// Delete removes a tweet and the likes on it.
func (r *PostgresTweetRepository) Delete(ctx context.Context, id string) error {
	return deleteWithLikes(ctx, r.pool, models.LikeKindTweet, "tweets", id)
}

// deleteWithLikes removes the row with id from table and every like targeting it.
// table is always a package constant.
func deleteWithLikes(ctx context.Context, pool db.Pool, kind models.LikeKind, table, id string) error {
	return db.WithTx(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM likes WHERE target_kind = $1 AND target_id = $2`, string(kind), id); err != nil {
			return fmt.Errorf("delete %s likes: %w", kind, err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete %s: %w", kind, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

const playlistColumns = `id, owner_id, name, description, created_at, updated_at`

// PostgresPlaylistRepository provides PostgreSQL-backed persistence for playlists.
type PostgresPlaylistRepository struct {
	pool db.Pool
}

// NewPostgresPlaylistRepository constructs a playlist repository backed by PostgreSQL.
func NewPostgresPlaylistRepository(pool db.Pool) *PostgresPlaylistRepository {
	return &PostgresPlaylistRepository{pool: pool}
}

// Create stores a new, empty playlist.
func (r *PostgresPlaylistRepository) Create(ctx context.Context, playlist models.Playlist) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO playlists (`+playlistColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6)
    `, playlist.ID, playlist.Owner, playlist.Name, playlist.Description, playlist.CreatedAt, playlist.UpdatedAt)
	if err != nil {
		if mapped := classifyWriteError(err); mapped != nil {
			return mapped
		}
		return fmt.Errorf("insert playlist: %w", err)
	}

	return nil
}

// FindByID fetches a playlist and its video ids in sequence order.
func (r *PostgresPlaylistRepository) FindByID(ctx context.Context, id string) (models.Playlist, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var p models.Playlist
	if err := conn.QueryRow(ctx, `SELECT `+playlistColumns+` FROM playlists WHERE id = $1`, id).
		Scan(&p.ID, &p.Owner, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("select playlist: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT video_id
        FROM playlist_videos
        WHERE playlist_id = $1
        ORDER BY id
    `, id)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("query playlist entries: %w", err)
	}
	defer rows.Close()

	p.Videos = []string{}
	for rows.Next() {
		var videoID string
		if err := rows.Scan(&videoID); err != nil {
			return models.Playlist{}, fmt.Errorf("scan playlist entry: %w", err)
		}
		p.Videos = append(p.Videos, videoID)
	}
	if err := rows.Err(); err != nil {
		return models.Playlist{}, fmt.Errorf("iterate playlist entries: %w", err)
	}

	return p, nil
}

// Update writes the name and description of a playlist.
func (r *PostgresPlaylistRepository) Update(ctx context.Context, playlist models.Playlist) (models.Playlist, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var p models.Playlist
	if err := conn.QueryRow(ctx, `
        UPDATE playlists
        SET name = $2, description = $3, updated_at = $4
        WHERE id = $1
        RETURNING `+playlistColumns, playlist.ID, playlist.Name, playlist.Description, playlist.UpdatedAt).
		Scan(&p.ID, &p.Owner, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Playlist{}, ErrNotFound
		}
		return models.Playlist{}, fmt.Errorf("update playlist: %w", err)
	}
	p.Videos = playlist.Videos

	return p, nil
}

// Delete removes a playlist; its entries go with it.
func (r *PostgresPlaylistRepository) Delete(ctx context.Context, id string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM playlists WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete playlist: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AddVideo appends a video to the end of the playlist. Adding a video that is
// already present appends it again.
func (r *PostgresPlaylistRepository) AddVideo(ctx context.Context, playlistID, videoID string) error {
	now := time.Now().UTC()
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
            INSERT INTO playlist_videos (id, playlist_id, video_id, created_at)
            VALUES ($1, $2, $3, $4)
        `, models.NewID(), playlistID, videoID, now); err != nil {
			if mapped := classifyWriteError(err); mapped != nil {
				return mapped
			}
			return fmt.Errorf("insert playlist entry: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE playlists SET updated_at = $2 WHERE id = $1`, playlistID, now); err != nil {
			return fmt.Errorf("touch playlist: %w", err)
		}
		return nil
	})
}

// RemoveVideo removes every occurrence of the video from the playlist and reports
// how many entries were removed. ErrNotFound means the video was not in the playlist.
func (r *PostgresPlaylistRepository) RemoveVideo(ctx context.Context, playlistID, videoID string) (int64, error) {
	var removed int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
            DELETE FROM playlist_videos
            WHERE playlist_id = $1 AND video_id = $2
        `, playlistID, videoID)
		if err != nil {
			return fmt.Errorf("delete playlist entries: %w", err)
		}
		removed = tag.RowsAffected()
		if removed == 0 {
			return ErrNotFound
		}
		if _, err := tx.Exec(ctx, `UPDATE playlists SET updated_at = now() WHERE id = $1`, playlistID); err != nil {
			return fmt.Errorf("touch playlist: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

var _ VideoRepository = (*PostgresVideoRepository)(nil)
var _ CommentRepository = (*PostgresCommentRepository)(nil)
var _ TweetRepository = (*PostgresTweetRepository)(nil)
var _ PlaylistRepository = (*PostgresPlaylistRepository)(nil)
