package service

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
	"github.com/groupguard/feishu-guard/internal/biz/usecase"
	"github.com/groupguard/feishu-guard/internal/state"
)

// InboundConfig contains the message-routing prefixes
type InboundConfig struct {
	CommandPrefix string
	AIPrefix      string
}

// MessageRequest represents one inbound message from the transport
type MessageRequest struct {
	MsgID      string
	GroupID    string // empty for direct messages
	SenderID   string
	Content    string
	IsFromSelf bool
}

// ReplyDirective tells the transport layer what to do with a message.
// A nil directive means no reply and no deletion.
type ReplyDirective struct {
	Text          string
	DeleteMessage bool
}

// InboundService applies the full decision process to each inbound message:
// group-lock gate, moderation pipeline, AI-chat prefix, command prefix.
// Exactly one reply (or none) is produced per message.
type InboundService struct {
	modUC  *usecase.ModerationUsecase
	dispUC *usecase.DispatchUsecase
	store  *state.Store
	cfg    InboundConfig
}

// NewInboundService creates a new inbound message service
func NewInboundService(
	modUC *usecase.ModerationUsecase,
	dispUC *usecase.DispatchUsecase,
	store *state.Store,
	cfg InboundConfig,
) *InboundService {
	return &InboundService{
		modUC:  modUC,
		dispUC: dispUC,
		store:  store,
		cfg:    cfg,
	}
}

// HandleInboundMessage evaluates one message and returns the reply directive
func (s *InboundService) HandleInboundMessage(ctx context.Context, req *MessageRequest) *ReplyDirective {
	if req.IsFromSelf {
		return nil
	}

	// Banned senders are ignored entirely
	if s.store.IsBanned(req.SenderID) {
		return nil
	}

	// Group lock gate: drop non-admin messages before moderation runs
	if req.GroupID != "" && s.store.IsLocked(req.GroupID) && !s.store.IsAdmin(req.SenderID) {
		log.Debug().Str("group", req.GroupID).Str("sender", req.SenderID).
			Msg("dropping message in locked group")
		return nil
	}

	// An AFK sender is back the moment they send anything that is not the
	// afk command itself. Cleared silently; the message proceeds as usual.
	if _, away := s.store.Afk(req.SenderID); away && !isAfkCommand(req.Content, s.cfg.CommandPrefix) {
		s.store.ClearAfk(req.SenderID)
	}

	verdict := s.modUC.Evaluate(req.Content, req.SenderID)
	if verdict.Blocked {
		text := blockNotice(verdict.Reason)
		if verdict.DeleteMessage {
			// content violations escalate the warning counter; spam does not
			text = text + "\n" + s.modUC.Warn(req.SenderID, verdict.Reason)
		}
		return &ReplyDirective{Text: text, DeleteMessage: verdict.DeleteMessage}
	}

	// AI-chat prefix takes precedence over the command prefix
	if s.cfg.AIPrefix != "" && strings.HasPrefix(req.Content, s.cfg.AIPrefix) {
		prompt := strings.TrimSpace(strings.TrimPrefix(req.Content, s.cfg.AIPrefix))
		if prompt == "" {
			return nil
		}
		return &ReplyDirective{Text: s.dispUC.CompleteChat(ctx, prompt)}
	}

	if strings.HasPrefix(req.Content, s.cfg.CommandPrefix) {
		line := strings.TrimPrefix(req.Content, s.cfg.CommandPrefix)
		reply := s.dispUC.Dispatch(ctx, line, req.SenderID, req.GroupID, req.MsgID)
		if reply == "" {
			return nil
		}
		return &ReplyDirective{Text: reply}
	}

	// Plain message: already rate-sampled by the pipeline, nothing to say
	return nil
}

func isAfkCommand(content, prefix string) bool {
	if !strings.HasPrefix(content, prefix) {
		return false
	}
	rest := strings.TrimPrefix(content, prefix)
	return rest == "afk" || strings.HasPrefix(rest, "afk ")
}

func blockNotice(reason string) string {
	switch reason {
	case domain.ReasonLinksNotAllowed:
		return "Links are not allowed in this group."
	case domain.ReasonInappropriateLanguage:
		return "Please keep the language appropriate."
	case domain.ReasonRateLimited:
		return "You are sending messages too quickly. Please slow down."
	default:
		return "Message blocked."
	}
}
