package repo

import (
	"context"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
)

// AuditRepo persists the moderation audit trail
type AuditRepo interface {
	Record(ctx context.Context, rec *domain.AuditRecord) error
	Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
	Close() error
}
