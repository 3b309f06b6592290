package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/maheshrc27/postpilot/internal/models"
)

// Publisher runs the publication of a single post once its timer fires.
// target is the time the timer was armed for.
type Publisher interface {
	Publish(ctx context.Context, postID string, target time.Time) error
}

// PendingLister returns every post currently persisted as scheduled.
type PendingLister interface {
	ListPending(ctx context.Context) ([]*models.Post, error)
}

type Scheduler struct {
	clock     clockwork.Clock
	registry  *Registry
	publisher Publisher
	posts     PendingLister
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(clock clockwork.Clock, publisher Publisher, posts PendingLister, log *slog.Logger) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		clock:     clock,
		registry:  NewRegistry(),
		publisher: publisher,
		posts:     posts,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Schedule arms a timer that publishes postID at targetTime. A target time that
// is already due is published before Schedule returns and no Job is kept.
// The caller must have persisted the scheduled status beforehand.
func (s *Scheduler) Schedule(postID string, targetTime time.Time, ownerID string) {
	delay := targetTime.Sub(s.clock.Now())
	if delay <= 0 {
		s.registry.Cancel(postID)
		s.log.Info("post due, publishing now", slog.String("post_id", postID), slog.String("owner_id", ownerID), slog.Duration("overdue", -delay))
		s.wg.Add(1)
		defer s.wg.Done()
		s.publish(postID, targetTime)
		return
	}

	// counted from arming so Shutdown drains a callback that already fired
	s.wg.Add(1)
	job := &Job{PostID: postID, Target: targetTime, onDone: s.wg.Done}
	ready := make(chan struct{})
	job.timer = s.clock.AfterFunc(delay, func() {
		<-ready
		s.fire(job)
	})
	s.registry.Register(job)
	close(ready)

	s.log.Info("post scheduled", slog.String("post_id", postID), slog.String("owner_id", ownerID), slog.Time("at", targetTime))
}

// Cancel stops the pending timer for postID. Losing the race against a timer
// that already fired is not an error: the in-flight publish runs to completion.
func (s *Scheduler) Cancel(postID string) {
	found, stopped := s.registry.Cancel(postID)
	switch {
	case !found:
		s.log.Debug("no pending job to cancel", slog.String("post_id", postID))
	case !stopped:
		s.log.Warn("cancel lost race with firing timer", slog.String("post_id", postID))
	default:
		s.log.Info("schedule cancelled", slog.String("post_id", postID))
	}
}

// Has reports whether postID has a live pending timer.
func (s *Scheduler) Has(postID string) bool {
	return s.registry.Has(postID)
}

// Pending is the number of live Jobs.
func (s *Scheduler) Pending() int {
	return s.registry.Len()
}

// Recover re-arms every persisted scheduled post. It runs once at startup,
// before schedule requests are accepted, and never fails: a store error is
// logged and leaves the process with fewer armed jobs.
func (s *Scheduler) Recover(ctx context.Context) int {
	s.log.Info("initializing post scheduler")

	posts, err := s.posts.ListPending(ctx)
	if err != nil {
		s.log.Error("failed to load pending posts", slog.Any("err", err))
		return 0
	}

	recovered := 0
	for _, post := range posts {
		if post == nil || post.ScheduledAt == nil {
			s.log.Warn("skipping scheduled post without target time")
			continue
		}
		s.Schedule(post.ID, *post.ScheduledAt, post.UserID)
		recovered++
	}

	s.log.Info("scheduler initialized", slog.Int("pending_posts", len(posts)), slog.Int("recovered", recovered), slog.Int("armed", s.registry.Len()))
	return recovered
}

// Shutdown stops all pending timers and waits for in-flight publishes until ctx is done.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	stopped := s.registry.StopAll()
	s.log.Info("scheduler stopping", slog.Int("stopped_jobs", stopped))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

func (s *Scheduler) fire(job *Job) {
	defer job.finish()
	defer s.registry.Release(job)

	s.publish(job.PostID, job.Target)
}

func (s *Scheduler) publish(postID string, target time.Time) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("publish panicked", slog.String("post_id", postID), slog.Any("panic", r))
		}
	}()

	if err := s.publisher.Publish(s.ctx, postID, target); err != nil {
		s.log.Warn("publish aborted", slog.String("post_id", postID), slog.Any("err", err))
	}
}
