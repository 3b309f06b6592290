package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postpilot/internal/models"
)

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrStatusConflict = errors.New("post status changed concurrently")
)

// StatusGuard is the compare part of UpdateStatus. The row is only written
// while it still matches every set field.
type StatusGuard struct {
	Statuses    []models.PostStatus
	OwnerID     string
	ScheduledAt *time.Time
}

// StatusUpdate is written as a whole: nil times and empty strings are stored as NULL.
type StatusUpdate struct {
	Status         models.PostStatus
	ScheduledAt    *time.Time
	PublishedAt    *time.Time
	ExternalPostID string
	PublishError   string
}

type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id string) (*models.Post, error)
	ListByOwner(ctx context.Context, userID string, status models.PostStatus) ([]*models.Post, error)
	ListPending(ctx context.Context) ([]*models.Post, error)
	ListUpcoming(ctx context.Context, userID string, now time.Time, limit int) ([]*models.Post, error)
	UpdateStatus(ctx context.Context, id string, guard StatusGuard, upd StatusUpdate) (*models.Post, error)
	UpdateContent(ctx context.Context, id, userID, content, templateID string, editable []models.PostStatus) (*models.Post, error)
	Remove(ctx context.Context, id, userID string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, content, template_id, status, scheduled_at, published_at, external_post_id, publish_error, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*models.Post, error) {
	var (
		post           models.Post
		templateID     sql.NullString
		scheduledAt    sql.NullTime
		publishedAt    sql.NullTime
		externalPostID sql.NullString
		publishError   sql.NullString
	)
	err := row.Scan(&post.ID, &post.UserID, &post.Content, &templateID, &post.Status,
		&scheduledAt, &publishedAt, &externalPostID, &publishError, &post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	post.TemplateID = templateID.String
	post.ExternalPostID = externalPostID.String
	post.PublishError = publishError.String
	if scheduledAt.Valid {
		t := scheduledAt.Time
		post.ScheduledAt = &t
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		post.PublishedAt = &t
	}
	return &post, nil
}

func (r *postRepository) scanPosts(rows *sql.Rows) ([]*models.Post, error) {
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	query := `
		INSERT INTO posts (id, user_id, content, template_id, status)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, post.ID, post.UserID, post.Content, post.TemplateID, post.Status).
		Scan(&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPostNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByOwner(ctx context.Context, userID string, status models.PostStatus) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1`
	args := []any{userID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return r.scanPosts(rows)
}

func (r *postRepository) ListPending(ctx context.Context) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND scheduled_at IS NOT NULL ORDER BY scheduled_at ASC`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return r.scanPosts(rows)
}

func (r *postRepository) ListUpcoming(ctx context.Context, userID string, now time.Time, limit int) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts
		WHERE user_id = $1 AND status = $2 AND scheduled_at > $3
		ORDER BY scheduled_at ASC
		LIMIT $4`
	rows, err := r.db.QueryContext(ctx, query, userID, models.PostStatusScheduled, now, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return r.scanPosts(rows)
}

func (r *postRepository) UpdateStatus(ctx context.Context, id string, guard StatusGuard, upd StatusUpdate) (*models.Post, error) {
	statuses := make([]string, 0, len(guard.Statuses))
	for _, s := range guard.Statuses {
		statuses = append(statuses, string(s))
	}

	query := `
		UPDATE posts
		SET status = $2,
			scheduled_at = $3,
			published_at = $4,
			external_post_id = NULLIF($5, ''),
			publish_error = NULLIF($6, ''),
			updated_at = NOW()
		WHERE id = $1
			AND status = ANY($7)
			AND ($8 = '' OR user_id = $8)
			AND ($9::timestamptz IS NULL OR scheduled_at = $9)
		RETURNING ` + postColumns

	post, err := scanPost(r.db.QueryRowContext(ctx, query,
		id, upd.Status, nullTime(upd.ScheduledAt), nullTime(upd.PublishedAt), upd.ExternalPostID, upd.PublishError,
		pq.Array(statuses), guard.OwnerID, nullTime(guard.ScheduledAt)))
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		slog.Info(err.Error())
		return nil, err
	}
	return nil, r.missOrConflict(ctx, id, guard.OwnerID)
}

func (r *postRepository) UpdateContent(ctx context.Context, id, userID, content, templateID string, editable []models.PostStatus) (*models.Post, error) {
	statuses := make([]string, 0, len(editable))
	for _, s := range editable {
		statuses = append(statuses, string(s))
	}

	query := `
		UPDATE posts
		SET content = $3,
			template_id = NULLIF($4, ''),
			updated_at = NOW()
		WHERE id = $1 AND user_id = $2 AND status = ANY($5)
		RETURNING ` + postColumns

	post, err := scanPost(r.db.QueryRowContext(ctx, query, id, userID, content, templateID, pq.Array(statuses)))
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		slog.Info(err.Error())
		return nil, err
	}
	return nil, r.missOrConflict(ctx, id, userID)
}

func (r *postRepository) Remove(ctx context.Context, id, userID string) error {
	query := `DELETE FROM posts WHERE id = $1 AND user_id = $2`
	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrPostNotFound
	}
	return nil
}

// missOrConflict tells apart a guarded write that found no row from one that lost the compare.
func (r *postRepository) missOrConflict(ctx context.Context, id, userID string) error {
	query := `SELECT 1 FROM posts WHERE id = $1 AND ($2 = '' OR user_id = $2)`

	var result int
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPostNotFound
		}
		slog.Info(err.Error())
		return err
	}
	return ErrStatusConflict
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
