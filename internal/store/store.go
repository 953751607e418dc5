package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/inspedralbes/tr3-comunitat-24-25-adriapedralbes-sub001/internal/models"
)

var (
	ErrEmptyContent = errors.New("message content is empty")
	ErrNotFound     = errors.New("message not found")
	ErrNotRecipient = errors.New("caller is not the message recipient")
	ErrTimeout      = errors.New("storage operation timed out")
)

// ConversationSummary is derived per partner on every request, never cached.
type ConversationSummary struct {
	PartnerID     string          `json:"partnerId"`
	LatestMessage *models.Message `json:"latestMessage"`
	UnreadCount   int64           `json:"unreadCount"`
}

// Store owns all access to the durable message log. Every operation is an
// independent request-response with a bounded deadline.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

func New(db *gorm.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{db: db, timeout: timeout}
}

func (s *Store) Append(ctx context.Context, sender, recipient, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg := &models.Message{Sender: sender, Recipient: recipient, Content: content}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, wrapErr("append message", err)
	}
	return msg, nil
}

// Conversation returns a window of messages between two users, newest first.
// Callers reverse the slice for chronological display.
func (s *Store) Conversation(ctx context.Context, userA, userB string, limit, offset int) ([]models.Message, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var msgs []models.Message
	err := s.db.WithContext(ctx).
		Where("(sender = ? AND recipient = ?) OR (sender = ? AND recipient = ?)",
			userA, userB, userB, userA).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&msgs).Error
	if err != nil {
		return nil, wrapErr("load conversation", err)
	}
	return msgs, nil
}

// MarkRead flips the read flag for the given ids, but only where the acting
// user is the recipient; other ids are a silent per-record no-op. Returns the
// records that are now read so callers can fan out receipts by sender.
func (s *Store) MarkRead(ctx context.Context, ids []uint64, actingUserID string) ([]models.Message, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("id IN ? AND recipient = ?", ids, actingUserID).
		Update("is_read", true).Error
	if err != nil {
		return nil, wrapErr("mark messages read", err)
	}

	var msgs []models.Message
	err = s.db.WithContext(ctx).
		Where("id IN ? AND recipient = ?", ids, actingUserID).
		Find(&msgs).Error
	if err != nil {
		return nil, wrapErr("load read messages", err)
	}
	return msgs, nil
}

// MarkConversationRead marks everything the partner sent to the user as read.
// Used by the REST conversation fetch (read-on-view).
func (s *Store) MarkConversationRead(ctx context.Context, partnerID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender = ? AND recipient = ? AND is_read = ?", partnerID, userID, false).
		Update("is_read", true).Error
	if err != nil {
		return wrapErr("mark conversation read", err)
	}
	return nil
}

// MarkMessageRead marks a single message read. Only the recipient may do it.
func (s *Store) MarkMessageRead(ctx context.Context, id uint64, actingUserID string) (*models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, wrapErr("load message", err)
	}
	if msg.Recipient != actingUserID {
		return nil, ErrNotRecipient
	}
	if !msg.Read {
		if err := s.db.WithContext(ctx).Model(&msg).Update("is_read", true).Error; err != nil {
			return nil, wrapErr("mark message read", err)
		}
		msg.Read = true
	}
	return &msg, nil
}

// UserConversations derives one summary per partner the user has ever
// exchanged a message with. One latest-message and one unread-count query per
// partner; fine at this scale, would need batching for very large partner
// counts.
func (s *Store) UserConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var sentTo, receivedFrom []string
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("sender = ?", userID).
		Distinct().Pluck("recipient", &sentTo).Error
	if err != nil {
		return nil, wrapErr("load partners", err)
	}
	err = s.db.WithContext(ctx).Model(&models.Message{}).
		Where("recipient = ?", userID).
		Distinct().Pluck("sender", &receivedFrom).Error
	if err != nil {
		return nil, wrapErr("load partners", err)
	}

	seen := make(map[string]bool, len(sentTo)+len(receivedFrom))
	partners := make([]string, 0, len(sentTo)+len(receivedFrom))
	for _, id := range append(sentTo, receivedFrom...) {
		if !seen[id] {
			seen[id] = true
			partners = append(partners, id)
		}
	}

	summaries := make([]ConversationSummary, 0, len(partners))
	for _, partnerID := range partners {
		var latest models.Message
		err := s.db.WithContext(ctx).
			Where("(sender = ? AND recipient = ?) OR (sender = ? AND recipient = ?)",
				userID, partnerID, partnerID, userID).
			Order("timestamp DESC, id DESC").
			First(&latest).Error
		if err != nil {
			return nil, wrapErr("load latest message", err)
		}

		var unread int64
		err = s.db.WithContext(ctx).Model(&models.Message{}).
			Where("sender = ? AND recipient = ? AND is_read = ?", partnerID, userID, false).
			Count(&unread).Error
		if err != nil {
			return nil, wrapErr("count unread", err)
		}

		summaries = append(summaries, ConversationSummary{
			PartnerID:     partnerID,
			LatestMessage: &latest,
			UnreadCount:   unread,
		})
	}
	return summaries, nil
}

func wrapErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ErrTimeout)
	}
	return fmt.Errorf("%s: %w", op, err)
}
