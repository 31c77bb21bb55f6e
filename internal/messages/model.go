package messages

import "time"

// TimestampLayout formats record timestamps for clients.
const TimestampLayout = "2006-01-02 15:04:05"

// Record is one persisted chat message. RawText holds the unrendered source.
type Record struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Author    string    `gorm:"column:username;size:190;not null"`
	RawText   string    `gorm:"column:message;type:text;not null"`
	CreatedAt time.Time `gorm:"column:timestamp;not null;index:idx_messages_timestamp"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "messages"
}

// Timestamp renders CreatedAt in UTC using TimestampLayout.
func (r Record) Timestamp() string {
	return r.CreatedAt.UTC().Format(TimestampLayout)
}
