package repo

import (
	"context"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
)

// TransportRepo is the messaging transport capability consumed by the core.
// Implementations wrap the Feishu client; tests use in-memory fakes.
type TransportRepo interface {
	// Reply sends a text reply to an existing message
	Reply(ctx context.Context, msgID, text string) error

	// Delete removes a message from the chat
	Delete(ctx context.Context, msgID string) error

	// Send sends a text message directly to a user or group
	Send(ctx context.Context, targetID, text string) error

	// GetParticipants lists the members of a group chat
	GetParticipants(ctx context.Context, groupID string) ([]domain.Member, error)

	// RemoveParticipants removes members from a group chat
	RemoveParticipants(ctx context.Context, groupID string, ids []string) error
}
