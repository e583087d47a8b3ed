package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cppla/webdevhub/models"
	"github.com/cppla/webdevhub/storage/memory"
	"github.com/cppla/webdevhub/utils"
)

// recordingSink collects enqueued events instead of sending them.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recordingSink) Enqueue(ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, ev)
	return nil
}

func (r *recordingSink) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// fakeNotifier records deliveries and fails with err when set.
type fakeNotifier struct {
	mu   sync.Mutex
	err  error
	sent []Event
}

func (f *fakeNotifier) Notify(ctx context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, ev)
	return nil
}

func (f *fakeNotifier) Sent() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Event(nil), f.sent...)
}

type fixture struct {
	store    *memory.Store
	sink     *recordingSink
	tokens   *utils.TokenManager
	revoked  *utils.RevocationList
	blog     *ContentService
	forum    *ContentService
	identity *IdentityService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	sink := &recordingSink{}
	log := zap.NewNop()
	tokens := utils.NewTokenManager("test-secret", time.Hour)
	revoked := utils.NewRevocationList(nil)
	return &fixture{
		store:    store,
		sink:     sink,
		tokens:   tokens,
		revoked:  revoked,
		blog:     NewContentService(BlogKind, store, store, sink, "http://site.test", log),
		forum:    NewContentService(ForumKind, store, store, sink, "http://site.test", log),
		identity: NewIdentityService(store, store, utils.NewBcryptHasher(4), tokens, revoked, sink, log),
	}
}

func (f *fixture) user(t *testing.T, name string) *models.User {
	t.Helper()
	u := &models.User{Username: name, Email: name + "@example.com", IsActive: true}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func requireKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "unexpected error: %v", err)
}
