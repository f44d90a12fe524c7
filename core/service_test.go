package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubStore struct {
	listReq   ListRequest
	listItems []Message
	listTotal int
	listErr   error

	stats    Stats
	statsErr error

	pingErr error
}

func (s *stubStore) Insert(_ context.Context, _ Message) (InsertOutcome, error) {
	return OutcomeInserted, nil
}

func (s *stubStore) List(_ context.Context, req ListRequest) ([]Message, int, error) {
	s.listReq = req
	return s.listItems, s.listTotal, s.listErr
}

func (s *stubStore) Stats(_ context.Context) (Stats, error) {
	return s.stats, s.statsErr
}

func (s *stubStore) EnsureSchema(_ context.Context) error { return nil }

func (s *stubStore) Ping(_ context.Context) error { return s.pingErr }

func newTestService(t *testing.T, store MessageStore, options ...Option) *Service {
	t.Helper()
	options = append([]Option{WithMessageStore(store)}, options...)
	service, err := NewService(Config{WebhookSecret: "test-secret"}, options...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func TestListMessagesClampsZeroLimitToMinimum(t *testing.T) {
	store := &stubStore{listTotal: 0}
	service := newTestService(t, store)

	page, err := service.ListMessages(context.Background(), ListRequest{Limit: 0})
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if store.listReq.Limit != MinPageLimit {
		t.Fatalf("limit = %d, want minimum %d", store.listReq.Limit, MinPageLimit)
	}
	if page.Limit != MinPageLimit {
		t.Fatalf("page limit = %d, want %d", page.Limit, MinPageLimit)
	}
}

func TestListMessagesClampsOutOfRangeValues(t *testing.T) {
	store := &stubStore{}
	service := newTestService(t, store)

	if _, err := service.ListMessages(context.Background(), ListRequest{Limit: 9999, Offset: -3}); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if store.listReq.Limit != MaxPageLimit {
		t.Fatalf("limit = %d, want %d", store.listReq.Limit, MaxPageLimit)
	}
	if store.listReq.Offset != 0 {
		t.Fatalf("offset = %d, want 0", store.listReq.Offset)
	}
}

func TestListMessagesPropagatesStoreFailure(t *testing.T) {
	store := &stubStore{listErr: errors.New("boom")}
	service := newTestService(t, store)

	if _, err := service.ListMessages(context.Background(), ListRequest{}); err == nil {
		t.Fatal("expected error from store")
	}
}

func TestMessageStatsPassesThrough(t *testing.T) {
	firstAt := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	store := &stubStore{stats: Stats{
		TotalMessages:  3,
		SendersCount:   2,
		TopSenders:     []SenderCount{{FromAddress: "+15551234567", Count: 2}},
		FirstMessageAt: &firstAt,
		LastMessageAt:  &firstAt,
	}}
	service := newTestService(t, store)

	stats, err := service.MessageStats(context.Background())
	if err != nil {
		t.Fatalf("MessageStats: %v", err)
	}
	if stats.TotalMessages != 3 || stats.SendersCount != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(stats.TopSenders) != 1 || stats.TopSenders[0].Count != 2 {
		t.Fatalf("unexpected top senders: %+v", stats.TopSenders)
	}
}

func TestReady(t *testing.T) {
	service := newTestService(t, &stubStore{})
	if err := service.Ready(context.Background()); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}

	unreachable := newTestService(t, &stubStore{pingErr: errors.New("connection refused")})
	if err := unreachable.Ready(context.Background()); err == nil {
		t.Fatal("expected readiness failure when storage is unreachable")
	}

	noSecret := newTestService(t, &stubStore{}, WithSecretSource(StaticSecretSource("")))
	if err := noSecret.Ready(context.Background()); err == nil {
		t.Fatal("expected readiness failure without a webhook secret")
	}
}

func TestNewServiceResolvesRuntimeConfigOverDefaults(t *testing.T) {
	service, err := NewService(Config{
		ServiceName:   "intake-test",
		WebhookSecret: "s3cret",
		Pagination:    PaginationConfig{DefaultLimit: 10, MaxLimit: 40},
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	cfg := service.Config()
	if cfg.ServiceName != "intake-test" {
		t.Fatalf("service name = %q", cfg.ServiceName)
	}
	if cfg.Pagination.DefaultLimit != 10 || cfg.Pagination.MaxLimit != 40 {
		t.Fatalf("pagination = %+v", cfg.Pagination)
	}
	if service.SecretSource().WebhookSecret() != "s3cret" {
		t.Fatalf("secret = %q", service.SecretSource().WebhookSecret())
	}
}
