package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-message-intake/core"
	"github.com/uptrace/bun"
)

const topSendersLimit = 10

// MessageStore persists messages keyed by message_id. Duplicate detection
// is the storage-level uniqueness constraint, never an application-side
// existence check: two concurrent inserts of the same id race on the
// constraint and exactly one wins.
type MessageStore struct {
	db   *bun.DB
	repo repository.Repository[*messageRecord]
	now  func() time.Time
}

func NewMessageStore(db *bun.DB) (*MessageStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*messageRecord](db, messageHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid message repository wiring: %w", err)
		}
	}
	return &MessageStore{
		db:   db,
		repo: repo,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}, nil
}

// EnsureSchema creates the messages table and its indexes when absent.
// Idempotent, safe to run on every startup.
func (s *MessageStore) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: message store is not configured")
	}
	if _, err := s.db.NewCreateTable().
		Model((*messageRecord)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create messages table: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*messageRecord)(nil)).
		Index("ix_messages_timestamp_message_id").
		Column("timestamp", "message_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create timestamp index: %w", err)
	}
	if _, err := s.db.NewCreateIndex().
		Model((*messageRecord)(nil)).
		Index("ix_messages_from_address").
		Column("from_address").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("sqlstore: create sender index: %w", err)
	}
	return nil
}

// Insert persists the message and reports whether it created a row. A
// uniqueness violation on message_id is the duplicate signal: the insert
// rolls back, the existing row is untouched, and no error is returned.
func (s *MessageStore) Insert(ctx context.Context, msg core.Message) (core.InsertOutcome, error) {
	if s == nil || s.db == nil {
		return "", fmt.Errorf("sqlstore: message store is not configured")
	}
	if err := msg.Validate(); err != nil {
		return "", err
	}

	record := &messageRecord{
		MessageID:   strings.TrimSpace(msg.MessageID),
		FromAddress: msg.FromAddress,
		ToAddress:   msg.ToAddress,
		Timestamp:   msg.Timestamp.UTC(),
		ReceivedAt:  s.now(),
	}
	if msg.Text != nil {
		text := *msg.Text
		record.Text = &text
	}

	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return core.OutcomeDuplicate, nil
		}
		return "", err
	}
	return core.OutcomeInserted, nil
}

// List returns one page of messages matching the filters plus the total
// match count before pagination. Order is timestamp ascending with
// message_id ascending as the deterministic tie-break.
func (s *MessageStore) List(ctx context.Context, req core.ListRequest) ([]core.Message, int, error) {
	if s == nil || s.db == nil {
		return nil, 0, fmt.Errorf("sqlstore: message store is not configured")
	}

	total, err := s.applyFilters(s.db.NewSelect().Model((*messageRecord)(nil)), req).Count(ctx)
	if err != nil {
		return nil, 0, err
	}

	records := []*messageRecord{}
	query := s.applyFilters(s.db.NewSelect().Model(&records), req).
		OrderExpr("?TableAlias.timestamp ASC, ?TableAlias.message_id ASC").
		Limit(req.Limit).
		Offset(req.Offset)
	if err := query.Scan(ctx); err != nil {
		return nil, 0, err
	}

	items := make([]core.Message, 0, len(records))
	for _, record := range records {
		items = append(items, messageToDomain(record))
	}
	return items, total, nil
}

func (s *MessageStore) applyFilters(query *bun.SelectQuery, req core.ListRequest) *bun.SelectQuery {
	if from := strings.TrimSpace(req.FromAddress); from != "" {
		query = query.Where("?TableAlias.from_address = ?", from)
	}
	if req.Since != nil {
		query = query.Where("?TableAlias.timestamp >= ?", req.Since.UTC())
	}
	if text := strings.TrimSpace(req.TextQuery); text != "" {
		query = query.Where("lower(?TableAlias.text) LIKE ?", "%"+strings.ToLower(text)+"%")
	}
	return query
}

// Stats aggregates over the whole table. The empty store yields zero
// counts and nil timestamps. Top senders order by count descending with
// sender ascending as tie-break so results are reproducible.
func (s *MessageStore) Stats(ctx context.Context) (core.Stats, error) {
	if s == nil || s.db == nil {
		return core.Stats{}, fmt.Errorf("sqlstore: message store is not configured")
	}

	total, err := s.db.NewSelect().Model((*messageRecord)(nil)).Count(ctx)
	if err != nil {
		return core.Stats{}, err
	}
	if total == 0 {
		return core.Stats{TopSenders: []core.SenderCount{}}, nil
	}

	var sendersCount int64
	if err := s.db.NewSelect().
		Model((*messageRecord)(nil)).
		ColumnExpr("count(DISTINCT ?TableAlias.from_address)").
		Scan(ctx, &sendersCount); err != nil {
		return core.Stats{}, err
	}

	first := &messageRecord{}
	if err := s.db.NewSelect().
		Model(first).
		OrderExpr("?TableAlias.timestamp ASC, ?TableAlias.message_id ASC").
		Limit(1).
		Scan(ctx); err != nil {
		return core.Stats{}, err
	}
	last := &messageRecord{}
	if err := s.db.NewSelect().
		Model(last).
		OrderExpr("?TableAlias.timestamp DESC, ?TableAlias.message_id DESC").
		Limit(1).
		Scan(ctx); err != nil {
		return core.Stats{}, err
	}

	type senderCountRow struct {
		FromAddress  string `bun:"from_address"`
		MessageCount int64  `bun:"message_count"`
	}
	rows := []senderCountRow{}
	if err := s.db.NewSelect().
		Model((*messageRecord)(nil)).
		Column("from_address").
		ColumnExpr("count(*) AS message_count").
		Group("from_address").
		OrderExpr("message_count DESC, from_address ASC").
		Limit(topSendersLimit).
		Scan(ctx, &rows); err != nil {
		return core.Stats{}, err
	}

	topSenders := make([]core.SenderCount, 0, len(rows))
	for _, row := range rows {
		topSenders = append(topSenders, core.SenderCount{
			FromAddress: row.FromAddress,
			Count:       row.MessageCount,
		})
	}

	firstAt := first.Timestamp.UTC()
	lastAt := last.Timestamp.UTC()
	return core.Stats{
		TotalMessages:  int64(total),
		SendersCount:   sendersCount,
		TopSenders:     topSenders,
		FirstMessageAt: &firstAt,
		LastMessageAt:  &lastAt,
	}, nil
}

func (s *MessageStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: message store is not configured")
	}
	return s.db.PingContext(ctx)
}

func messageToDomain(record *messageRecord) core.Message {
	if record == nil {
		return core.Message{}
	}
	msg := core.Message{
		MessageID:   record.MessageID,
		FromAddress: record.FromAddress,
		ToAddress:   record.ToAddress,
		Timestamp:   record.Timestamp.UTC(),
		ReceivedAt:  record.ReceivedAt.UTC(),
	}
	if record.Text != nil {
		text := *record.Text
		msg.Text = &text
	}
	return msg
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ core.MessageStore = (*MessageStore)(nil)
