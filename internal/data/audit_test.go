package data

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
)

func TestAuditRepoRoundTrip(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	repo, err := NewAuditRepo(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	ctx := context.Background()
	base := time.Now().Add(-time.Minute)

	for i, action := range []string{domain.AuditActionWarn, domain.AuditActionBan, domain.AuditActionKick} {
		err := repo.Record(ctx, &domain.AuditRecord{
			ID:        uuid.NewString(),
			Action:    action,
			TargetID:  "u1",
			GroupID:   "g1",
			Reason:    "test",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	records, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Newest first
	assert.Equal(t, domain.AuditActionKick, records[0].Action)
	assert.Equal(t, domain.AuditActionWarn, records[2].Action)

	// Limit is honored
	records, err = repo.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestAuditRepoEmptyRecent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	repo, err := NewAuditRepo(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	records, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records)
}
