package models

import (
	"database/sql"
	"time"
)

// Source is a tracked feed account. LastFingerprint identifies the
// newest item observed in the most recent successful poll; a null
// fingerprint means the source was never polled.
type Source struct {
	Handle          string `gorm:"primaryKey"`
	LastFingerprint sql.NullString
	CreatedAt       time.Time

	Subscriptions []Subscription `gorm:"foreignKey:SourceHandle"`
}

type Sources []Source

type Guild struct {
	ID        string `gorm:"primaryKey"`
	CreatedAt time.Time

	Channels []Channel
}

// Channel carries the webhook credential used to post into it.
// WebhookID and WebhookToken are either both null (no delivery
// attempted yet) or both set; they are rotated together on recovery.
type Channel struct {
	ID           string `gorm:"primaryKey"`
	GuildID      string `gorm:"index"`
	WebhookID    sql.NullString
	WebhookToken sql.NullString
	CreatedAt    time.Time

	Guild Guild
}

type Channels []Channel

// HasWebhook reports whether the channel holds a usable credential pair.
func (c *Channel) HasWebhook() bool {
	return c.WebhookID.Valid && c.WebhookToken.Valid
}

// Subscription links a tracked source to a delivery channel; the
// composite primary key keeps the pair unique.
type Subscription struct {
	SourceHandle string `gorm:"primaryKey"`
	ChannelID    string `gorm:"primaryKey"`
	CreatedAt    time.Time

	Source  Source  `gorm:"foreignKey:SourceHandle"`
	Channel Channel `gorm:"foreignKey:ChannelID"`
}

type Subscriptions []Subscription
