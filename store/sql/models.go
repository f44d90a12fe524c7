package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type messageRecord struct {
	bun.BaseModel `bun:"table:messages,alias:msg"`

	MessageID   string    `bun:"message_id,pk"`
	FromAddress string    `bun:"from_address,notnull"`
	ToAddress   string    `bun:"to_address,notnull"`
	Timestamp   time.Time `bun:"timestamp,notnull"`
	Text        *string   `bun:"text"`
	ReceivedAt  time.Time `bun:"received_at,nullzero,notnull,default:current_timestamp"`
}
