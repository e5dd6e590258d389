package logic

import (
	"context"
	"log/slog"
	"time"

	"github.com/FahruddinZaimIbrahim/talkflow/dao"
)

// RetentionLogic hard-deletes stale soft-deleted conversations.
type RetentionLogic struct {
	convoDAO *dao.ConversationDAO
}

func NewRetentionLogic(convoDAO *dao.ConversationDAO) *RetentionLogic {
	return &RetentionLogic{convoDAO: convoDAO}
}

// Purge removes conversations that are inactive and last updated before
// now-threshold, cascading to their messages. Idempotent: a second run
// with no new matches deletes nothing.
func (l *RetentionLogic) Purge(threshold time.Duration) (int64, error) {
	cutoff := time.Now().Add(-threshold)
	deleted, err := l.convoDAO.PurgeInactiveBefore(cutoff)
	if err != nil {
		slog.Error("retention purge failed", "error", err)
		return 0, err
	}
	if deleted > 0 {
		slog.Info("retention purge completed", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// Run invokes Purge on every tick until the context is cancelled.
func (l *RetentionLogic) Run(ctx context.Context, interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Purge(threshold)
		}
	}
}
