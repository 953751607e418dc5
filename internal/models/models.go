package models

import "time"

// Message is the single durable record of this service. Immutable once
// created except for the read flag, which only ever flips false -> true.
// User ids are opaque strings issued by the main backend.
type Message struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	Sender    string    `gorm:"size:64;not null;index:idx_conversation,priority:1" json:"sender"`
	Recipient string    `gorm:"size:64;not null;index:idx_conversation,priority:2" json:"recipient"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Read      bool      `gorm:"column:is_read;not null;default:false" json:"read"`
	Timestamp time.Time `gorm:"index;autoCreateTime" json:"timestamp"`
}
