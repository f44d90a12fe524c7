package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

var (
	ErrMissingMessageID = errors.New("core: message id is required")
	ErrInvalidAddress   = errors.New("core: address must be a + followed by digits")
	ErrTextTooLong      = errors.New("core: text exceeds maximum length")
	ErrMissingTimestamp = errors.New("core: timestamp is required")
)

// MaxTextLength bounds the message body, counted in code units.
const MaxTextLength = 4096

// Message is the persisted ingestion entity. A message is created exactly
// once, at the first successful ingestion of its MessageID, and is never
// updated or deleted afterwards.
type Message struct {
	MessageID   string
	FromAddress string
	ToAddress   string
	Timestamp   time.Time
	Text        *string
	ReceivedAt  time.Time
}

func (m Message) Validate() error {
	if strings.TrimSpace(m.MessageID) == "" {
		return ErrMissingMessageID
	}
	if err := ValidateAddress(m.FromAddress); err != nil {
		return err
	}
	if err := ValidateAddress(m.ToAddress); err != nil {
		return err
	}
	if m.Timestamp.IsZero() {
		return ErrMissingTimestamp
	}
	if m.Text != nil && utf8.RuneCountInString(*m.Text) > MaxTextLength {
		return fmt.Errorf("%w: %d > %d", ErrTextTooLong, utf8.RuneCountInString(*m.Text), MaxTextLength)
	}
	return nil
}

// ValidateAddress enforces the simplified international-number format:
// a leading + followed by one or more digits, nothing else.
func ValidateAddress(address string) error {
	if len(address) < 2 || address[0] != '+' {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	for _, r := range address[1:] {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
		}
	}
	return nil
}

// InsertOutcome classifies the result of an idempotent insert.
type InsertOutcome string

const (
	OutcomeInserted  InsertOutcome = "inserted"
	OutcomeDuplicate InsertOutcome = "duplicate"
)

// ListRequest carries the composable read-side filters. Zero values mean
// the filter is not applied; filters combine with AND semantics.
type ListRequest struct {
	FromAddress string
	Since       *time.Time
	TextQuery   string
	Limit       int
	Offset      int
}

const (
	MinPageLimit = 1
	MaxPageLimit = 100
)

// Clamp normalizes limit into [MinPageLimit, MaxPageLimit] and offset into
// [0, inf). Out-of-range values are silently clamped, never rejected.
func (r ListRequest) Clamp() ListRequest {
	if r.Limit < MinPageLimit {
		r.Limit = MinPageLimit
	}
	if r.Limit > MaxPageLimit {
		r.Limit = MaxPageLimit
	}
	if r.Offset < 0 {
		r.Offset = 0
	}
	return r
}

// Page bundles one page of results with the pre-pagination match count and
// the effective limit/offset used to produce it.
type Page struct {
	Items  []Message
	Total  int
	Limit  int
	Offset int
}

type SenderCount struct {
	FromAddress string
	Count       int64
}

// Stats is the aggregate rollup over the whole store. FirstMessageAt and
// LastMessageAt are nil when the store is empty.
type Stats struct {
	TotalMessages  int64
	SendersCount   int64
	TopSenders     []SenderCount
	FirstMessageAt *time.Time
	LastMessageAt  *time.Time
}
