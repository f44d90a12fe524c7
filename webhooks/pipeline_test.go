package webhooks

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/goliatone/go-message-intake/core"
	"github.com/goliatone/go-message-intake/metrics"
)

type stubVerifier struct {
	err   error
	calls int
}

func (v *stubVerifier) Verify(_ context.Context, _ core.InboundRequest) error {
	v.calls++
	return v.err
}

type recordingStore struct {
	core.MessageStore

	outcome    core.InsertOutcome
	err        error
	calls      int
	inserted   core.Message
	ctxErrSeen error
}

func (s *recordingStore) Insert(ctx context.Context, msg core.Message) (core.InsertOutcome, error) {
	s.calls++
	s.inserted = msg
	s.ctxErrSeen = ctx.Err()
	return s.outcome, s.err
}

func requestCount(recorder *metrics.MemoryRecorder, result core.Outcome) int64 {
	return recorder.CounterValue("intake.webhook_requests.total", map[string]string{
		"result": string(result),
	})
}

func TestProcessCreatesMessage(t *testing.T) {
	store := &recordingStore{outcome: core.OutcomeInserted}
	recorder := metrics.NewMemoryRecorder()
	pipeline := NewPipeline(&stubVerifier{}, store, nil, recorder)

	result, err := pipeline.Process(context.Background(), core.InboundRequest{
		Body: validPayloadJSON(t, nil),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Outcome != core.OutcomeCreated {
		t.Fatalf("outcome = %q, want %q", result.Outcome, core.OutcomeCreated)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", result.StatusCode, http.StatusOK)
	}
	if result.MessageID != "msg-001" {
		t.Fatalf("message id = %q", result.MessageID)
	}
	if deduped, _ := result.Metadata["deduped"].(bool); deduped {
		t.Fatal("created delivery must not be flagged as deduped")
	}
	if store.calls != 1 {
		t.Fatalf("store calls = %d, want 1", store.calls)
	}
	if got := requestCount(recorder, core.OutcomeCreated); got != 1 {
		t.Fatalf("created counter = %d, want 1", got)
	}
}

func TestProcessReportsDuplicateAsSuccess(t *testing.T) {
	store := &recordingStore{outcome: core.OutcomeDuplicate}
	recorder := metrics.NewMemoryRecorder()
	pipeline := NewPipeline(&stubVerifier{}, store, nil, recorder)

	result, err := pipeline.Process(context.Background(), core.InboundRequest{
		Body: validPayloadJSON(t, nil),
	})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Outcome != core.OutcomeDuplicateMessage {
		t.Fatalf("outcome = %q, want %q", result.Outcome, core.OutcomeDuplicateMessage)
	}
	if result.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", result.StatusCode, http.StatusOK)
	}
	if deduped, _ := result.Metadata["deduped"].(bool); !deduped {
		t.Fatal("duplicate delivery must carry the deduped flag")
	}
	if got := requestCount(recorder, core.OutcomeDuplicateMessage); got != 1 {
		t.Fatalf("duplicate counter = %d, want 1", got)
	}
}

func TestProcessRejectsInvalidSignatureBeforeStore(t *testing.T) {
	store := &recordingStore{outcome: core.OutcomeInserted}
	recorder := metrics.NewMemoryRecorder()
	verifier := &stubVerifier{err: core.NewAuthError("webhooks: signature verification failed")}
	pipeline := NewPipeline(verifier, store, nil, recorder)

	result, err := pipeline.Process(context.Background(), core.InboundRequest{
		Body: validPayloadJSON(t, nil),
	})
	if err == nil {
		t.Fatal("expected verification error")
	}
	if result.Outcome != core.OutcomeInvalidSignature {
		t.Fatalf("outcome = %q, want %q", result.Outcome, core.OutcomeInvalidSignature)
	}
	if result.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", result.StatusCode, http.StatusUnauthorized)
	}
	if store.calls != 0 {
		t.Fatal("store must not be touched on signature failure")
	}
	if got := requestCount(recorder, core.OutcomeInvalidSignature); got != 1 {
		t.Fatalf("invalid signature counter = %d, want 1", got)
	}
}

func TestProcessRejectsInvalidPayloadBeforeStore(t *testing.T) {
	store := &recordingStore{outcome: core.OutcomeInserted}
	recorder := metrics.NewMemoryRecorder()
	pipeline := NewPipeline(&stubVerifier{}, store, nil, recorder)

	raw := validPayloadJSON(t, func(m map[string]any) { m["from"] = "not-a-number" })
	result, err := pipeline.Process(context.Background(), core.InboundRequest{Body: raw})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if result.Outcome != core.OutcomeInvalidPayload {
		t.Fatalf("outcome = %q, want %q", result.Outcome, core.OutcomeInvalidPayload)
	}
	if result.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", result.StatusCode, http.StatusUnprocessableEntity)
	}
	if store.calls != 0 {
		t.Fatal("store must not be touched on validation failure")
	}
	if got := requestCount(recorder, core.OutcomeInvalidPayload); got != 1 {
		t.Fatalf("invalid payload counter = %d, want 1", got)
	}
}

func TestProcessRejectsBlankMessageIDAsInvalidPayload(t *testing.T) {
	store := &recordingStore{outcome: core.OutcomeInserted}
	recorder := metrics.NewMemoryRecorder()
	pipeline := NewPipeline(&stubVerifier{}, store, nil, recorder)

	raw := validPayloadJSON(t, func(m map[string]any) { m["message_id"] = "   " })
	result, err := pipeline.Process(context.Background(), core.InboundRequest{Body: raw})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if result.Outcome != core.OutcomeInvalidPayload {
		t.Fatalf("outcome = %q, want %q", result.Outcome, core.OutcomeInvalidPayload)
	}
	if result.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d", result.StatusCode, http.StatusUnprocessableEntity)
	}
	if store.calls != 0 {
		t.Fatal("blank identifier must be rejected before the store")
	}
	if got := requestCount(recorder, core.OutcomeInvalidPayload); got != 1 {
		t.Fatalf("invalid payload counter = %d, want 1", got)
	}
}

func TestProcessWrapsStoreFailure(t *testing.T) {
	store := &recordingStore{err: errors.New("disk full")}
	recorder := metrics.NewMemoryRecorder()
	pipeline := NewPipeline(&stubVerifier{}, store, nil, recorder)

	result, err := pipeline.Process(context.Background(), core.InboundRequest{
		Body: validPayloadJSON(t, nil),
	})
	if err == nil {
		t.Fatal("expected storage error")
	}
	if result.Outcome != core.OutcomeInternalError {
		t.Fatalf("outcome = %q, want %q", result.Outcome, core.OutcomeInternalError)
	}
	if result.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", result.StatusCode, http.StatusInternalServerError)
	}
	if got := requestCount(recorder, core.OutcomeInternalError); got != 1 {
		t.Fatalf("internal error counter = %d, want 1", got)
	}
}

func TestProcessInsertSurvivesCallerCancellation(t *testing.T) {
	store := &recordingStore{outcome: core.OutcomeInserted}
	pipeline := NewPipeline(&stubVerifier{}, store, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := pipeline.Process(ctx, core.InboundRequest{Body: validPayloadJSON(t, nil)}); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("store calls = %d, want 1", store.calls)
	}
	if store.ctxErrSeen != nil {
		t.Fatalf("insert context must not be cancelled, got %v", store.ctxErrSeen)
	}
}

func TestProcessEmitsExactlyOneCounterPerRequest(t *testing.T) {
	store := &recordingStore{outcome: core.OutcomeInserted}
	recorder := metrics.NewMemoryRecorder()
	pipeline := NewPipeline(&stubVerifier{}, store, nil, recorder)

	if _, err := pipeline.Process(context.Background(), core.InboundRequest{
		Body: validPayloadJSON(t, nil),
	}); err != nil {
		t.Fatalf("Process: %v", err)
	}

	var total int64
	for _, counter := range recorder.Snapshot().Counters {
		total += counter.Value
	}
	if total != 1 {
		t.Fatalf("total counter emissions = %d, want exactly 1", total)
	}
}
