package rest

import (
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-message-intake/core"
	"github.com/goliatone/go-message-intake/metrics"
)

// maxWebhookBody bounds the raw request body read: the text field tops out
// at 4096 code units, so 1 MiB leaves generous headroom for envelope and
// multi-byte runes.
const maxWebhookBody = 1 << 20

type statusResponse struct {
	Status string `json:"status"`
}

type messageItem struct {
	MessageID string    `json:"message_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"ts"`
	Text      *string   `json:"text"`
}

type messagesResponse struct {
	Data   []messageItem `json:"data"`
	Total  int           `json:"total"`
	Limit  int           `json:"limit"`
	Offset int           `json:"offset"`
}

type senderCountItem struct {
	From  string `json:"from"`
	Count int64  `json:"count"`
}

type statsResponse struct {
	TotalMessages     int64             `json:"total_messages"`
	SendersCount      int64             `json:"senders_count"`
	MessagesPerSender []senderCountItem `json:"messages_per_sender"`
	FirstMessageTS    *time.Time        `json:"first_message_ts"`
	LastMessageTS     *time.Time        `json:"last_message_ts"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		s.writeError(w, core.NewNotConfiguredError("rest: ingestion pipeline is not configured"))
		return
	}

	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, core.NewValidationError("rest: read request body", nil))
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	// Created and duplicate deliveries share the same success shape:
	// duplicate delivery is idempotent acceptance, not an error.
	if _, err := s.pipeline.Process(r.Context(), core.InboundRequest{
		Headers: headers,
		Body:    rawBody,
	}); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		s.writeError(w, core.NewNotConfiguredError("rest: query service is not configured"))
		return
	}

	req, err := parseListRequest(r, s.service.Config().Pagination.DefaultLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}

	page, err := s.service.ListMessages(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}

	items := make([]messageItem, 0, len(page.Items))
	for _, msg := range page.Items {
		items = append(items, messageItem{
			MessageID: msg.MessageID,
			From:      msg.FromAddress,
			To:        msg.ToAddress,
			Timestamp: msg.Timestamp,
			Text:      msg.Text,
		})
	}
	s.writeJSON(w, http.StatusOK, messagesResponse{
		Data:   items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// parseListRequest maps the query string onto the domain filters. The
// default limit applies only when the limit parameter is absent; an
// explicit out-of-range value, zero included, is clamped downstream.
func parseListRequest(r *http.Request, defaultLimit int) (core.ListRequest, error) {
	query := r.URL.Query()
	req := core.ListRequest{
		FromAddress: strings.TrimSpace(query.Get("from")),
		TextQuery:   query.Get("q"),
		Limit:       defaultLimit,
	}

	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return core.ListRequest{}, badQueryParam("limit", raw)
		}
		req.Limit = limit
	}
	if raw := strings.TrimSpace(query.Get("offset")); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil {
			return core.ListRequest{}, badQueryParam("offset", raw)
		}
		req.Offset = offset
	}
	if raw := strings.TrimSpace(query.Get("since")); raw != "" {
		since, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return core.ListRequest{}, badQueryParam("since", raw)
		}
		req.Since = &since
	}
	return req, nil
}

func badQueryParam(name string, value string) error {
	return core.NewValidationError(
		"rest: invalid query parameter "+name+": "+value,
		map[string]any{"param": name},
	)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		s.writeError(w, core.NewNotConfiguredError("rest: query service is not configured"))
		return
	}

	stats, err := s.service.MessageStats(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}

	perSender := make([]senderCountItem, 0, len(stats.TopSenders))
	for _, sender := range stats.TopSenders {
		perSender = append(perSender, senderCountItem{
			From:  sender.FromAddress,
			Count: sender.Count,
		})
	}
	s.writeJSON(w, http.StatusOK, statsResponse{
		TotalMessages:     stats.TotalMessages,
		SendersCount:      stats.SendersCount,
		MessagesPerSender: perSender,
		FirstMessageTS:    stats.FirstMessageAt,
		LastMessageTS:     stats.LastMessageAt,
	})
}

func (s *Server) handleHealthLive(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (s *Server) handleHealthReady(w http.ResponseWriter, r *http.Request) {
	if s.service == nil {
		s.writeError(w, core.NewNotConfiguredError("rest: service is not configured"))
		return
	}
	if err := s.service.Ready(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{Status: "ready"})
}

func (s *Server) handleDebugMetrics(w http.ResponseWriter, _ *http.Request) {
	if s.metrics == nil {
		s.writeJSON(w, http.StatusOK, metrics.Snapshot{
			Counters:   []metrics.CounterSnapshot{},
			Histograms: []metrics.HistogramSnapshot{},
		})
		return
	}
	s.writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}
