package app

import (
	"context"

	"github.com/haierkeys/db-backup-service/internal/backup"
	"github.com/haierkeys/db-backup-service/internal/domain"
	"github.com/haierkeys/db-backup-service/pkg/workerpool"

	"go.uber.org/zap"
)

// pooledNotifier hands notifications to the worker pool and falls back to
// sending inline when the pool is full or closed.
// pooledNotifier 将通知交给 Worker Pool，池满或已关闭时同步发送
type pooledNotifier struct {
	inner  backup.Notifier
	pool   *workerpool.Pool
	logger *zap.Logger
}

func newPooledNotifier(inner backup.Notifier, pool *workerpool.Pool, logger *zap.Logger) *pooledNotifier {
	return &pooledNotifier{inner: inner, pool: pool, logger: logger}
}

func (n *pooledNotifier) Notify(ctx context.Context, subject, body string, severity domain.Severity) {
	ctx = context.WithoutCancel(ctx)
	err := n.pool.SubmitAsync(ctx, "notify", func(ctx context.Context) error {
		n.inner.Notify(ctx, subject, body, severity)
		return nil
	})
	if err != nil {
		n.logger.Debug("notification pool unavailable, sending inline", zap.Error(err))
		n.inner.Notify(ctx, subject, body, severity)
	}
}

var _ backup.Notifier = (*pooledNotifier)(nil)
