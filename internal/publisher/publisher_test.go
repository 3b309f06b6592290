package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/maheshrc27/postpilot/internal/models"
	"github.com/maheshrc27/postpilot/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memPosts struct {
	mu      sync.Mutex
	posts   map[string]*models.Post
	findErr error
}

func newMemPosts(posts ...*models.Post) *memPosts {
	m := &memPosts{posts: map[string]*models.Post{}}
	for _, p := range posts {
		m.posts[p.ID] = p
	}
	return m
}

func (m *memPosts) FindByID(_ context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPosts) UpdateStatus(_ context.Context, id string, guard repository.StatusGuard, upd repository.StatusUpdate) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.posts[id]
	if !ok {
		return nil, repository.ErrPostNotFound
	}
	if !slices.Contains(guard.Statuses, p.Status) {
		return nil, repository.ErrStatusConflict
	}
	if guard.ScheduledAt != nil && (p.ScheduledAt == nil || !p.ScheduledAt.Equal(*guard.ScheduledAt)) {
		return nil, repository.ErrStatusConflict
	}
	p.Status = upd.Status
	p.ScheduledAt = upd.ScheduledAt
	p.PublishedAt = upd.PublishedAt
	p.ExternalPostID = upd.ExternalPostID
	p.PublishError = upd.PublishError
	cp := *p
	return &cp, nil
}

func (m *memPosts) get(id string) models.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.posts[id]
}

type fakeCreds struct {
	cred *models.Credential
	err  error
}

func (f *fakeCreds) GetCredential(context.Context, string) (*models.Credential, error) {
	return f.cred, f.err
}

type fakeClient struct {
	calls int
	id    string
	err   error
	hook  func()
}

func (f *fakeClient) Publish(_ context.Context, authorURN, accessToken, content string) (string, error) {
	f.calls++
	if f.hook != nil {
		f.hook()
	}
	return f.id, f.err
}

type fakeHistory struct {
	rows []*models.PostingHistory
}

func (f *fakeHistory) Create(_ context.Context, ph *models.PostingHistory) (int64, error) {
	f.rows = append(f.rows, ph)
	return int64(len(f.rows)), nil
}

type testRemoteError struct {
	msg       string
	transient bool
}

func (e *testRemoteError) Error() string         { return "remote: " + e.msg }
func (e *testRemoteError) RemoteMessage() string { return e.msg }
func (e *testRemoteError) Transient() bool       { return e.transient }

var (
	testNow    = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	testTarget = testNow.Add(-time.Second)
)

func scheduledPost() *models.Post {
	at := testTarget
	return &models.Post{ID: "p1", UserID: "u1", Content: "hello", Status: models.PostStatusScheduled, ScheduledAt: &at}
}

func validCred() *models.Credential {
	return &models.Credential{
		Connected:   true,
		AccessToken: "tok",
		ExpiresAt:   testNow.Add(time.Hour),
		AuthorURN:   "urn:li:person:abc",
	}
}

func newTestPublisher(posts PostStore, creds CredentialProvider, client Client, history HistoryRecorder) *Publisher {
	return New(posts, creds, client, Options{
		History: history,
		Clock:   clockwork.NewFakeClockAt(testNow),
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func TestPublishSuccess(t *testing.T) {
	posts := newMemPosts(scheduledPost())
	client := &fakeClient{id: "urn:li:share:1"}
	history := &fakeHistory{}
	p := newTestPublisher(posts, &fakeCreds{cred: validCred()}, client, history)

	require.NoError(t, p.Publish(context.Background(), "p1", testTarget))

	got := posts.get("p1")
	assert.Equal(t, models.PostStatusPublished, got.Status)
	assert.Equal(t, "urn:li:share:1", got.ExternalPostID)
	require.NotNil(t, got.PublishedAt)
	assert.Equal(t, testNow, *got.PublishedAt)
	assert.Equal(t, 1, client.calls)
	require.Len(t, history.rows, 1)
	assert.Equal(t, "urn:li:share:1", history.rows[0].ExternalPostID)
}

func TestPublishNotConnected(t *testing.T) {
	cases := map[string]*models.Credential{
		"missing":      nil,
		"disconnected": {Connected: false, AccessToken: "tok", AuthorURN: "urn:li:person:abc"},
		"no token":     {Connected: true, AuthorURN: "urn:li:person:abc"},
	}
	for name, cred := range cases {
		t.Run(name, func(t *testing.T) {
			posts := newMemPosts(scheduledPost())
			client := &fakeClient{id: "x"}
			p := newTestPublisher(posts, &fakeCreds{cred: cred}, client, nil)

			require.NoError(t, p.Publish(context.Background(), "p1", testTarget))

			got := posts.get("p1")
			assert.Equal(t, models.PostStatusFailed, got.Status)
			assert.Equal(t, "not connected", got.PublishError)
			assert.Equal(t, 0, client.calls)
		})
	}
}

func TestPublishTokenExpired(t *testing.T) {
	posts := newMemPosts(scheduledPost())
	cred := validCred()
	cred.ExpiresAt = testNow.Add(-time.Minute)
	client := &fakeClient{id: "x"}
	p := newTestPublisher(posts, &fakeCreds{cred: cred}, client, nil)

	require.NoError(t, p.Publish(context.Background(), "p1", testTarget))

	got := posts.get("p1")
	assert.Equal(t, models.PostStatusFailed, got.Status)
	assert.Equal(t, "token expired", got.PublishError)
	assert.Equal(t, 0, client.calls)
}

func TestPublishRemoteError(t *testing.T) {
	t.Run("with message", func(t *testing.T) {
		posts := newMemPosts(scheduledPost())
		client := &fakeClient{err: &testRemoteError{msg: "Content is a duplicate"}}
		p := newTestPublisher(posts, &fakeCreds{cred: validCred()}, client, nil)

		require.NoError(t, p.Publish(context.Background(), "p1", testTarget))
		got := posts.get("p1")
		assert.Equal(t, models.PostStatusFailed, got.Status)
		assert.Equal(t, "Content is a duplicate", got.PublishError)
	})

	t.Run("without message", func(t *testing.T) {
		posts := newMemPosts(scheduledPost())
		client := &fakeClient{err: &testRemoteError{}}
		p := newTestPublisher(posts, &fakeCreds{cred: validCred()}, client, nil)

		require.NoError(t, p.Publish(context.Background(), "p1", testTarget))
		assert.Equal(t, "LinkedIn API error", posts.get("p1").PublishError)
	})
}

func TestPublishUnexpectedError(t *testing.T) {
	posts := newMemPosts(scheduledPost())
	client := &fakeClient{err: errors.New("connection reset")}
	history := &fakeHistory{}
	p := newTestPublisher(posts, &fakeCreds{cred: validCred()}, client, history)

	require.NoError(t, p.Publish(context.Background(), "p1", testTarget))

	got := posts.get("p1")
	assert.Equal(t, models.PostStatusFailed, got.Status)
	assert.Equal(t, "unknown error", got.PublishError)
	require.Len(t, history.rows, 1)
	assert.Equal(t, "unknown error", history.rows[0].ErrorMessage)
}

func TestPublishCredentialLookupError(t *testing.T) {
	posts := newMemPosts(scheduledPost())
	client := &fakeClient{id: "x"}
	p := newTestPublisher(posts, &fakeCreds{err: errors.New("decrypt failed")}, client, nil)

	require.NoError(t, p.Publish(context.Background(), "p1", testTarget))
	assert.Equal(t, "unknown error", posts.get("p1").PublishError)
	assert.Equal(t, 0, client.calls)
}

func TestPublishPostNotFound(t *testing.T) {
	client := &fakeClient{id: "x"}
	p := newTestPublisher(newMemPosts(), &fakeCreds{cred: validCred()}, client, nil)

	assert.NoError(t, p.Publish(context.Background(), "missing", testTarget))
	assert.Equal(t, 0, client.calls)
}

func TestPublishStoreError(t *testing.T) {
	posts := newMemPosts()
	posts.findErr = errors.New("db down")
	p := newTestPublisher(posts, &fakeCreds{cred: validCred()}, &fakeClient{}, nil)

	assert.Error(t, p.Publish(context.Background(), "p1", testTarget))
}

func TestPublishSkipsPostNotScheduled(t *testing.T) {
	for _, status := range []models.PostStatus{models.PostStatusDraft, models.PostStatusPublished, models.PostStatusFailed} {
		t.Run(string(status), func(t *testing.T) {
			post := scheduledPost()
			post.Status = status
			posts := newMemPosts(post)
			client := &fakeClient{id: "x"}
			p := newTestPublisher(posts, &fakeCreds{cred: validCred()}, client, nil)

			require.NoError(t, p.Publish(context.Background(), "p1", testTarget))
			assert.Equal(t, 0, client.calls)
			assert.Equal(t, status, posts.get("p1").Status)
		})
	}
}

func TestPublishLosesToConcurrentCancel(t *testing.T) {
	posts := newMemPosts(scheduledPost())
	client := &fakeClient{id: "urn:li:share:1"}
	client.hook = func() {
		// the owner cancels while the request is in flight
		_, err := posts.UpdateStatus(context.Background(), "p1",
			repository.StatusGuard{Statuses: []models.PostStatus{models.PostStatusScheduled}},
			repository.StatusUpdate{Status: models.PostStatusDraft})
		require.NoError(t, err)
	}
	p := newTestPublisher(posts, &fakeCreds{cred: validCred()}, client, nil)

	err := p.Publish(context.Background(), "p1", testTarget)
	assert.ErrorIs(t, err, repository.ErrStatusConflict)
	assert.Equal(t, models.PostStatusDraft, posts.get("p1").Status)
}

func TestPublishRetriesTransientErrors(t *testing.T) {
	posts := newMemPosts(scheduledPost())
	attempts := 0
	client := &fakeClient{id: "urn:li:share:2"}
	client.hook = func() {
		attempts++
		if attempts < 3 {
			client.err = &testRemoteError{msg: "throttled", transient: true}
		} else {
			client.err = nil
		}
	}
	p := New(posts, &fakeCreds{cred: validCred()}, client, Options{
		Retry:  NewRetryPolicy(RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}),
		Clock:  clockwork.NewFakeClockAt(testNow),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	require.NoError(t, p.Publish(context.Background(), "p1", testTarget))
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, models.PostStatusPublished, posts.get("p1").Status)
}

func TestPublishSkipsStaleTimerAfterReschedule(t *testing.T) {
	post := scheduledPost()
	rescheduled := testNow.Add(2 * time.Hour)
	post.ScheduledAt = &rescheduled
	posts := newMemPosts(post)
	client := &fakeClient{id: "urn:li:share:1"}
	history := &fakeHistory{}
	p := newTestPublisher(posts, &fakeCreds{cred: validCred()}, client, history)

	// the timer armed for testTarget fired after the post moved to a later time
	require.NoError(t, p.Publish(context.Background(), "p1", testTarget))

	got := posts.get("p1")
	assert.Equal(t, 0, client.calls)
	assert.Equal(t, models.PostStatusScheduled, got.Status)
	assert.Equal(t, rescheduled, *got.ScheduledAt)
	assert.Empty(t, history.rows)
}

func TestPublishMatchesTargetAtMicrosecondPrecision(t *testing.T) {
	post := scheduledPost()
	stored := testTarget.Add(123456 * time.Microsecond)
	post.ScheduledAt = &stored
	posts := newMemPosts(post)
	client := &fakeClient{id: "urn:li:share:1"}
	p := newTestPublisher(posts, &fakeCreds{cred: validCred()}, client, nil)

	require.NoError(t, p.Publish(context.Background(), "p1", stored.Add(200*time.Nanosecond)))

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, models.PostStatusPublished, posts.get("p1").Status)
}
