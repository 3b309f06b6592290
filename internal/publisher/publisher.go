package publisher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
)

const (
	msgUnknownError = "unknown error"
	msgAPIError     = "LinkedIn API error"
)

// Client is the external publish collaborator.
type Client interface {
	Publish(ctx context.Context, authorURN, accessToken, content string) (string, error)
}

// RemoteError is an explicit error answer from the external network.
type RemoteError interface {
	error
	RemoteMessage() string
	Transient() bool
}

type PostStore interface {
	FindByID(ctx context.Context, id string) (*models.Post, error)
	UpdateStatus(ctx context.Context, id string, guard repository.StatusGuard, upd repository.StatusUpdate) (*models.Post, error)
}

type CredentialProvider interface {
	GetCredential(ctx context.Context, ownerID string) (*models.Credential, error)
}

type HistoryRecorder interface {
	Create(ctx context.Context, ph *models.PostingHistory) (int64, error)
}

type Options struct {
	Timeout time.Duration
	Retry   RetryPolicy
	History HistoryRecorder
	Clock   clockwork.Clock
	Logger  *slog.Logger
}

type Publisher struct {
	posts       PostStore
	credentials CredentialProvider
	client      Client
	history     HistoryRecorder
	retry       RetryPolicy
	timeout     time.Duration
	clock       clockwork.Clock
	log         *slog.Logger
}

func New(posts PostStore, credentials CredentialProvider, client Client, opts Options) *Publisher {
	p := &Publisher{
		posts:       posts,
		credentials: credentials,
		client:      client,
		history:     opts.History,
		retry:       opts.Retry,
		timeout:     opts.Timeout,
		clock:       opts.Clock,
		log:         opts.Logger,
	}
	if p.retry == nil {
		p.retry = NoRetry{}
	}
	if p.timeout <= 0 {
		p.timeout = 20 * time.Second
	}
	if p.clock == nil {
		p.clock = clockwork.NewRealClock()
	}
	if p.log == nil {
		p.log = slog.Default()
	}
	return p
}

// Publish drives one post from scheduled to published or failed. target is the
// time the firing timer was armed for; a post rescheduled since then is left to
// its newer timer. It returns an error only when no terminal state could be written.
func (p *Publisher) Publish(ctx context.Context, postID string, target time.Time) error {
	log := p.log.With(slog.String("post_id", postID))
	log.Info("publishing post")

	post, err := p.posts.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrPostNotFound) {
			log.Warn("post not found, nothing to publish")
			return nil
		}
		log.Error("failed to load post", slog.Any("err", err))
		return err
	}
	if post.Status.Terminal() {
		log.Info("post already finished, skipping", slog.String("status", string(post.Status)))
		return nil
	}
	if post.Status != models.PostStatusScheduled || post.ScheduledAt == nil {
		log.Info("post no longer scheduled, skipping", slog.String("status", string(post.Status)))
		return nil
	}
	if !sameInstant(*post.ScheduledAt, target) {
		log.Info("post rescheduled, skipping stale timer", slog.Time("fired_for", target), slog.Time("scheduled_at", *post.ScheduledAt))
		return nil
	}
	log = log.With(slog.String("owner_id", post.UserID))

	cred, err := p.credentials.GetCredential(ctx, post.UserID)
	if err != nil {
		log.Error("failed to load credential", slog.Any("err", err))
		return p.fail(ctx, log, post, msgUnknownError)
	}
	if err := CheckCredential(cred, p.clock.Now()); err != nil {
		return p.fail(ctx, log, post, err.Error())
	}

	externalID, err := p.retry.Run(ctx, func(ctx context.Context) (string, error) {
		attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()
		return p.client.Publish(attemptCtx, cred.AuthorURN, cred.AccessToken, post.Content)
	})
	if err != nil {
		return p.fail(ctx, log, post, failureMessage(err))
	}

	now := p.clock.Now()
	_, err = p.posts.UpdateStatus(ctx, post.ID, guardFor(post), repository.StatusUpdate{
		Status:         models.PostStatusPublished,
		ScheduledAt:    post.ScheduledAt,
		PublishedAt:    &now,
		ExternalPostID: externalID,
	})
	if err != nil {
		// the post is live on the network; the store no longer agrees
		log.Error("published but failed to record result", slog.String("external_post_id", externalID), slog.Any("err", err))
		p.record(ctx, log, post, externalID, "")
		return err
	}

	log.Info("post published", slog.String("external_post_id", externalID))
	p.record(ctx, log, post, externalID, "")
	return nil
}

func (p *Publisher) fail(ctx context.Context, log *slog.Logger, post *models.Post, reason string) error {
	_, err := p.posts.UpdateStatus(ctx, post.ID, guardFor(post), repository.StatusUpdate{
		Status:       models.PostStatusFailed,
		ScheduledAt:  post.ScheduledAt,
		PublishError: reason,
	})
	if err != nil {
		log.Error("failed to record publish failure", slog.String("reason", reason), slog.Any("err", err))
		return err
	}

	log.Warn("post failed", slog.String("reason", reason))
	p.record(ctx, log, post, "", reason)
	return nil
}

func (p *Publisher) record(ctx context.Context, log *slog.Logger, post *models.Post, externalID, errMsg string) {
	if p.history == nil {
		return
	}
	_, err := p.history.Create(ctx, &models.PostingHistory{
		UserID:         post.UserID,
		PostID:         post.ID,
		ExternalPostID: externalID,
		ErrorMessage:   errMsg,
	})
	if err != nil {
		log.Warn("failed to save posting history", slog.Any("err", err))
	}
}

// guardFor pins a write to the schedule that fired, so a cancel or reschedule
// that committed first is never overwritten. post.ScheduledAt has already been
// matched against the fired target and carries the stored precision.
func guardFor(post *models.Post) repository.StatusGuard {
	return repository.StatusGuard{
		Statuses:    []models.PostStatus{models.PostStatusScheduled},
		ScheduledAt: post.ScheduledAt,
	}
}

// sameInstant compares at microsecond precision, the resolution Postgres keeps.
func sameInstant(a, b time.Time) bool {
	return a.Round(time.Microsecond).Equal(b.Round(time.Microsecond))
}

func failureMessage(err error) string {
	var remote RemoteError
	if errors.As(err, &remote) {
		if msg := remote.RemoteMessage(); msg != "" {
			return msg
		}
		return msgAPIError
	}
	return msgUnknownError
}
