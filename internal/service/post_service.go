package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/maheshrc27/postpilot/internal/transfer"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const upcomingLimit = 10

var (
	ErrScheduleInPast   = errors.New("scheduled time must be in the future")
	ErrPostNotScheduled = errors.New("scheduled post not found")
	ErrPostNotEditable  = errors.New("post can no longer be edited")
	ErrEmptyContent     = errors.New("content cannot be empty")
	ErrCancelTooLate    = errors.New("post left the scheduled state before the cancel completed")
	ErrUnknownStatus    = errors.New("unknown post status")
)

// Scheduler is the timer side of scheduling.
type Scheduler interface {
	Schedule(postID string, targetTime time.Time, ownerID string)
	Cancel(postID string)
}

type PostService interface {
	CreatePost(ctx context.Context, userID string, pc *transfer.PostCreation) (*models.Post, error)
	List(ctx context.Context, userID string, status models.PostStatus) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID, userID string) (*models.Post, error)
	Update(ctx context.Context, postID, userID string, pc *transfer.PostCreation) (*models.Post, error)
	Remove(ctx context.Context, postID, userID string) error
	History(ctx context.Context, postID, userID string) ([]*models.PostingHistory, error)

	Schedule(ctx context.Context, postID, userID string, scheduledAt time.Time) (*models.Post, error)
	Cancel(ctx context.Context, postID, userID string) (*models.Post, error)
	ListUpcoming(ctx context.Context, userID string) ([]*models.Post, error)
}

type postService struct {
	pr    repository.PostRepository
	ph    repository.PostingHistoryRepository
	sched Scheduler
	clock clockwork.Clock
}

func NewPostService(pr repository.PostRepository, ph repository.PostingHistoryRepository, sched Scheduler, clock clockwork.Clock) PostService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &postService{
		pr:    pr,
		ph:    ph,
		sched: sched,
		clock: clock,
	}
}

func (s *postService) CreatePost(ctx context.Context, userID string, pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil || strings.TrimSpace(pc.Content) == "" {
		slog.Info(ErrEmptyContent.Error())
		return nil, ErrEmptyContent
	}

	id, err := gonanoid.New()
	if err != nil {
		slog.Error(err.Error())
		return nil, err
	}

	post := &models.Post{
		ID:         id,
		UserID:     userID,
		Content:    pc.Content,
		TemplateID: pc.TemplateID,
		Status:     models.PostStatusDraft,
	}
	if err := s.pr.Create(ctx, post); err != nil {
		return nil, fmt.Errorf("error creating post: %w", err)
	}
	return post, nil
}

func (s *postService) List(ctx context.Context, userID string, status models.PostStatus) ([]*models.Post, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%w %q", ErrUnknownStatus, status)
	}
	posts, err := s.pr.ListByOwner(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("error listing posts: %w", err)
	}
	return posts, nil
}

func (s *postService) PostInfo(ctx context.Context, postID, userID string) (*models.Post, error) {
	post, err := s.pr.FindByID(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		return nil, repository.ErrPostNotFound
	}
	return post, nil
}

func (s *postService) Update(ctx context.Context, postID, userID string, pc *transfer.PostCreation) (*models.Post, error) {
	if pc == nil || strings.TrimSpace(pc.Content) == "" {
		return nil, ErrEmptyContent
	}
	post, err := s.pr.UpdateContent(ctx, postID, userID, pc.Content, pc.TemplateID,
		[]models.PostStatus{models.PostStatusDraft, models.PostStatusFailed})
	if errors.Is(err, repository.ErrStatusConflict) {
		return nil, ErrPostNotEditable
	}
	return post, err
}

func (s *postService) Remove(ctx context.Context, postID, userID string) error {
	if _, err := s.PostInfo(ctx, postID, userID); err != nil {
		return err
	}
	s.sched.Cancel(postID)
	return s.pr.Remove(ctx, postID, userID)
}

func (s *postService) History(ctx context.Context, postID, userID string) ([]*models.PostingHistory, error) {
	if _, err := s.PostInfo(ctx, postID, userID); err != nil {
		return nil, err
	}
	return s.ph.ListByPostID(ctx, postID, userID)
}

// Schedule persists the scheduled status and then arms the timer, so a live
// Job never exists for a post the store does not consider scheduled.
func (s *postService) Schedule(ctx context.Context, postID, userID string, scheduledAt time.Time) (*models.Post, error) {
	if !scheduledAt.After(s.clock.Now()) {
		return nil, ErrScheduleInPast
	}

	post, err := s.pr.UpdateStatus(ctx, postID,
		repository.StatusGuard{
			Statuses: []models.PostStatus{models.PostStatusDraft, models.PostStatusFailed, models.PostStatusScheduled},
			OwnerID:  userID,
		},
		repository.StatusUpdate{
			Status:      models.PostStatusScheduled,
			ScheduledAt: &scheduledAt,
		})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrPostNotEditable
		}
		return nil, err
	}

	s.sched.Schedule(post.ID, scheduledAt, post.UserID)
	return post, nil
}

// Cancel stops the timer before touching the store: a timer must not fire
// between the status write and its cancellation.
func (s *postService) Cancel(ctx context.Context, postID, userID string) (*models.Post, error) {
	post, err := s.PostInfo(ctx, postID, userID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			return nil, ErrPostNotScheduled
		}
		return nil, err
	}
	if post.Status != models.PostStatusScheduled {
		return nil, ErrPostNotScheduled
	}

	s.sched.Cancel(postID)

	post, err = s.pr.UpdateStatus(ctx, postID,
		repository.StatusGuard{
			Statuses: []models.PostStatus{models.PostStatusScheduled},
			OwnerID:  userID,
		},
		repository.StatusUpdate{Status: models.PostStatusDraft})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			return nil, ErrCancelTooLate
		}
		return nil, err
	}
	return post, nil
}

func (s *postService) ListUpcoming(ctx context.Context, userID string) ([]*models.Post, error) {
	posts, err := s.pr.ListUpcoming(ctx, userID, s.clock.Now(), upcomingLimit)
	if err != nil {
		return nil, fmt.Errorf("error listing upcoming posts: %w", err)
	}
	return posts, nil
}
