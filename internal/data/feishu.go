package data

import (
	"context"

	"github.com/groupguard/feishu-guard/feishu"
	"github.com/groupguard/feishu-guard/internal/biz/domain"
	"github.com/groupguard/feishu-guard/internal/biz/repo"
)

// feishuRepo adapts the Feishu client to the transport capability
type feishuRepo struct {
	client *feishu.Client
}

// NewTransportRepo creates a Feishu-backed transport repository
func NewTransportRepo(client *feishu.Client) repo.TransportRepo {
	return &feishuRepo{client: client}
}

func (r *feishuRepo) Reply(ctx context.Context, msgID, text string) error {
	return r.client.ReplyText(ctx, msgID, text)
}

func (r *feishuRepo) Delete(ctx context.Context, msgID string) error {
	return r.client.DeleteMessage(ctx, msgID)
}

func (r *feishuRepo) Send(ctx context.Context, targetID, text string) error {
	return r.client.SendText(ctx, targetID, text)
}

func (r *feishuRepo) GetParticipants(ctx context.Context, groupID string) ([]domain.Member, error) {
	members, err := r.client.GetChatMembers(ctx, groupID)
	if err != nil {
		return nil, err
	}

	var result []domain.Member
	for _, m := range members {
		result = append(result, domain.Member{
			UserID: m.MemberID,
			Name:   m.Name,
		})
	}
	return result, nil
}

func (r *feishuRepo) RemoveParticipants(ctx context.Context, groupID string, ids []string) error {
	return r.client.RemoveChatMembers(ctx, groupID, ids)
}
