package webhooks

import (
	"context"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-message-intake/core"
)

// Pipeline drives one ingestion request through verification, validation,
// and the idempotent write. Every request terminates in exactly one
// outcome, reported once to the metrics sink and once to the log.
type Pipeline struct {
	Verifier Verifier
	Store    core.MessageStore
	Logger   core.Logger
	Metrics  core.MetricsRecorder
	Now      func() time.Time
}

func NewPipeline(verifier Verifier, store core.MessageStore, logger core.Logger, metrics core.MetricsRecorder) *Pipeline {
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &Pipeline{
		Verifier: verifier,
		Store:    store,
		Logger:   glog.Ensure(logger),
		Metrics:  metrics,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Pipeline) Process(ctx context.Context, req core.InboundRequest) (core.InboundResult, error) {
	startedAt := p.now()
	if p == nil || p.Store == nil {
		err := goerrors.New("webhooks: pipeline requires a message store", goerrors.CategoryInternal).
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.IntakeErrorInternal)
		return core.InboundResult{
			Outcome:    core.OutcomeInternalError,
			StatusCode: http.StatusInternalServerError,
		}, err
	}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			result := p.reject(ctx, startedAt, "", err)
			return result, err
		}
	}

	payload, err := DecodePayload(req.Body)
	if err != nil {
		result := p.reject(ctx, startedAt, "", err)
		return result, err
	}

	// Run the write to completion even if the caller disconnects: a
	// cancelled request must neither suppress duplicate detection nor
	// allow a later delivery to create a second row.
	outcome, err := p.Store.Insert(context.WithoutCancel(ctx), payload.Message())
	if err != nil {
		storeErr := core.WrapStorageError(err, "webhooks: persist message")
		result := p.reject(ctx, startedAt, payload.MessageID, storeErr)
		return result, storeErr
	}

	terminal := core.OutcomeCreated
	if outcome == core.OutcomeDuplicate {
		terminal = core.OutcomeDuplicateMessage
	}
	p.finish(ctx, startedAt, payload.MessageID, terminal, nil)

	return core.InboundResult{
		Outcome:    terminal,
		MessageID:  payload.MessageID,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"deduped": outcome == core.OutcomeDuplicate,
		},
	}, nil
}

func (p *Pipeline) reject(ctx context.Context, startedAt time.Time, messageID string, err error) core.InboundResult {
	outcome := classifyError(err)
	p.finish(ctx, startedAt, messageID, outcome, err)
	return core.InboundResult{
		Outcome:    outcome,
		MessageID:  messageID,
		StatusCode: statusCode(err),
		Metadata: map[string]any{
			"rejected": true,
		},
	}
}

func (p *Pipeline) finish(ctx context.Context, startedAt time.Time, messageID string, outcome core.Outcome, err error) {
	elapsed := p.now().Sub(startedAt)

	if p.Metrics != nil {
		tags := map[string]string{"result": string(outcome)}
		p.Metrics.IncCounter(ctx, "intake.webhook_requests.total", 1, tags)
		p.Metrics.ObserveHistogram(ctx, "intake.webhook_requests.duration_ms", float64(elapsed.Milliseconds()), tags)
	}

	if p.Logger == nil {
		return
	}
	logger := p.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	args := []any{
		"message_id", messageID,
		"outcome", string(outcome),
		"duration_ms", elapsed.Milliseconds(),
	}
	if err != nil {
		args = append(args, "error", err.Error())
		logger.Error("webhook processed", args...)
		return
	}
	logger.Info("webhook processed", args...)
}

func (p *Pipeline) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func classifyError(err error) core.Outcome {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return core.OutcomeInternalError
	}
	switch richErr.TextCode {
	case core.IntakeErrorUnauthorized:
		return core.OutcomeInvalidSignature
	case core.IntakeErrorInvalidPayload:
		return core.OutcomeInvalidPayload
	default:
		return core.OutcomeInternalError
	}
}

func statusCode(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Code > 0 {
		return richErr.Code
	}
	return http.StatusInternalServerError
}
