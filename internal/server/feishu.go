package server

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/groupguard/feishu-guard/feishu"
	"github.com/groupguard/feishu-guard/internal/biz/repo"
	"github.com/groupguard/feishu-guard/internal/service"
)

const handleTimeout = 45 * time.Second

// GuardServer wires the Feishu event stream into the inbound message service
type GuardServer struct {
	feishuClient *feishu.Client
	transport    repo.TransportRepo
	inbound      *service.InboundService

	// Message deduplication cache
	seenMsgsMu sync.RWMutex
	seenMsgs   map[string]time.Time // msgID -> timestamp
}

// NewGuardServer creates a new guard server
func NewGuardServer(
	feishuClient *feishu.Client,
	transport repo.TransportRepo,
	inbound *service.InboundService,
) *GuardServer {
	return &GuardServer{
		feishuClient: feishuClient,
		transport:    transport,
		inbound:      inbound,
		seenMsgs:     make(map[string]time.Time),
	}
}

// Start sets the message handler and starts the Feishu client
func (s *GuardServer) Start() error {
	s.feishuClient.OnMessage(s.handleMessage)
	return s.feishuClient.Start()
}

// Stop stops the server
func (s *GuardServer) Stop() {
	s.feishuClient.Stop()
}

// handleMessage handles one Feishu message event
func (s *GuardServer) handleMessage(msg *feishu.Message) {
	// Feishu redelivers events until acked; process each message once
	if s.isMessageSeen(msg.MsgID) {
		log.Debug().Str("msg", msg.MsgID).Msg("duplicate message ignored")
		return
	}
	s.markMessageSeen(msg.MsgID)

	groupID := ""
	if msg.ChatType == "group" {
		groupID = msg.ChatID
	}

	req := &service.MessageRequest{
		MsgID:      msg.MsgID,
		GroupID:    groupID,
		SenderID:   msg.SenderID,
		Content:    msg.Content,
		IsFromSelf: msg.IsBot || (msg.SenderID != "" && msg.SenderID == s.feishuClient.BotOpenID()),
	}

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()

	directive := s.inbound.HandleInboundMessage(ctx, req)
	if directive == nil {
		return
	}

	if directive.Text != "" {
		if err := s.transport.Reply(ctx, msg.MsgID, directive.Text); err != nil {
			log.Error().Err(err).Str("msg", msg.MsgID).Msg("reply failed")
		}
	}

	// A failed delete must not swallow the reply, so it runs after
	if directive.DeleteMessage {
		if err := s.transport.Delete(ctx, msg.MsgID); err != nil {
			log.Error().Err(err).Str("msg", msg.MsgID).Msg("delete failed")
		}
	}
}

// isMessageSeen checks if a message has been processed
func (s *GuardServer) isMessageSeen(msgID string) bool {
	s.seenMsgsMu.RLock()
	defer s.seenMsgsMu.RUnlock()
	_, exists := s.seenMsgs[msgID]
	return exists
}

// markMessageSeen marks a message as processed
func (s *GuardServer) markMessageSeen(msgID string) {
	s.seenMsgsMu.Lock()
	defer s.seenMsgsMu.Unlock()
	s.seenMsgs[msgID] = time.Now()

	// Drop records older than 5 minutes to bound the cache
	cutoff := time.Now().Add(-5 * time.Minute)
	for id, ts := range s.seenMsgs {
		if ts.Before(cutoff) {
			delete(s.seenMsgs, id)
		}
	}
}
