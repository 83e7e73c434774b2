// Persistent audit trail of moderation responses executed by the engine.
package actionlog

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// One executed (or failed) response.
type Entry struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	GuildID     uint64 `gorm:"index:idx_entry_guild_user"`
	UserID      uint64 `gorm:"index:idx_entry_guild_user"`
	ChannelID   uint64
	MessageID   uint64
	Rule        string `gorm:"index"`
	Verb        string
	Line        string
	ContentHash string
	Success     bool
	Error       string
}

type Store interface {
	Record(ctx context.Context, entries []Entry) error
	// Most recent first.
	ForUser(ctx context.Context, guildID, userID uint64, limit int) ([]Entry, error)
}

type DBStore struct {
	db *gorm.DB
}

var _ Store = (*DBStore)(nil)

// Runs schema migrations before returning.
func NewDBStore(db *gorm.DB) (*DBStore, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("migrating action log: %w", err)
	}
	return &DBStore{db: db}, nil
}

func (s *DBStore) Record(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&entries).Error
}

func (s *DBStore) ForUser(ctx context.Context, guildID, userID uint64, limit int) ([]Entry, error) {
	var out []Entry
	q := s.db.WithContext(ctx).Where("guild_id = ? AND user_id = ?", guildID, userID).Order("id desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Rule hit totals for a guild since the given time, keyed by rule name. Counts distinct messages.
func (s *DBStore) RuleTotals(ctx context.Context, guildID uint64, since time.Time) (map[string]int, error) {
	var rows []struct {
		Rule  string
		Count int
	}
	err := s.db.WithContext(ctx).Model(&Entry{}).
		Select("rule, count(distinct message_id) as count").
		Where("guild_id = ? AND created_at >= ?", guildID, since).
		Group("rule").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(rows))
	for _, r := range rows {
		out[r.Rule] = r.Count
	}
	return out, nil
}
