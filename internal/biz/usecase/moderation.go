package usecase

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
	"github.com/groupguard/feishu-guard/internal/biz/repo"
	"github.com/groupguard/feishu-guard/internal/state"
)

// urlPattern matches HTTP(S) URLs embedded in a message body
var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// ModerationConfig contains the policy knobs for the pipeline
type ModerationConfig struct {
	BannedWords          []string
	MaxMessagesPerMinute int
	MaxWarnings          int
}

// ModerationUsecase evaluates inbound messages against the moderation
// policy: link filtering, banned-word filtering and spam rate limiting,
// in that order, first match wins.
type ModerationUsecase struct {
	store *state.Store
	audit repo.AuditRepo

	bannedWords          []string // lowercased
	maxMessagesPerMinute int
	maxWarnings          int
}

// NewModerationUsecase creates a new moderation usecase
func NewModerationUsecase(store *state.Store, audit repo.AuditRepo, cfg ModerationConfig) *ModerationUsecase {
	uc := &ModerationUsecase{
		store:                store,
		audit:                audit,
		maxMessagesPerMinute: cfg.MaxMessagesPerMinute,
		maxWarnings:          cfg.MaxWarnings,
	}
	for _, w := range cfg.BannedWords {
		uc.bannedWords = append(uc.bannedWords, strings.ToLower(w))
	}
	return uc
}

// Evaluate classifies a message as blocked or allowed. The content checks
// (links, words) are stateless; only the final spam check mutates the
// sender's rate window, so a message rejected for content is never counted.
// Moderation must never crash message processing: an internal failure is
// logged and the message is treated as allowed.
func (uc *ModerationUsecase) Evaluate(body, sender string) (verdict domain.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			log.Warn().Str("component", "moderation").Interface("panic", r).
				Msg("evaluation failed, allowing message")
			verdict = domain.Verdict{}
		}
	}()

	// 1. Link check. An unparseable link alone blocks the message.
	for _, raw := range urlPattern.FindAllString(body, -1) {
		u, err := url.Parse(raw)
		if err != nil || u.Hostname() == "" || !uc.store.DomainAllowed(u.Hostname()) {
			uc.record(sender, domain.AuditActionBlock, domain.ReasonLinksNotAllowed)
			return domain.Verdict{Blocked: true, Reason: domain.ReasonLinksNotAllowed, DeleteMessage: true}
		}
	}

	// 2. Banned-word check, case-insensitive substring over the full body
	lower := strings.ToLower(body)
	for _, w := range uc.bannedWords {
		if strings.Contains(lower, w) {
			uc.record(sender, domain.AuditActionBlock, domain.ReasonInappropriateLanguage)
			return domain.Verdict{Blocked: true, Reason: domain.ReasonInappropriateLanguage, DeleteMessage: true}
		}
	}

	// 3. Spam check. The only stateful branch: the rate sample is recorded
	// here, on the non-violating path. A rate-limited message is refused but
	// not deleted.
	if !uc.store.TakeRateSlot(sender, uc.maxMessagesPerMinute) {
		uc.record(sender, domain.AuditActionBlock, domain.ReasonRateLimited)
		return domain.Verdict{Blocked: true, Reason: domain.ReasonRateLimited, DeleteMessage: false}
	}

	return domain.Verdict{}
}

// Warn escalates the sender's warning counter and returns the user-facing
// text. Reaching the configured threshold bans the sender.
func (uc *ModerationUsecase) Warn(sender, reason string) string {
	count, banned := uc.store.Warn(sender, uc.maxWarnings)
	if banned {
		uc.record(sender, domain.AuditActionBan, reason)
		return "You have been banned from using this bot."
	}
	uc.record(sender, domain.AuditActionWarn, reason)
	return fmt.Sprintf("Warning %d of %d: %s", count, uc.maxWarnings, reason)
}

// MaxWarnings returns the configured warning threshold
func (uc *ModerationUsecase) MaxWarnings() int {
	return uc.maxWarnings
}

func (uc *ModerationUsecase) record(sender, action, reason string) {
	if uc.audit == nil {
		return
	}
	rec := &domain.AuditRecord{
		ID:        uuid.NewString(),
		Action:    action,
		TargetID:  sender,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := uc.audit.Record(ctx, rec); err != nil {
		log.Error().Err(err).Str("component", "moderation").Msg("audit record failed")
	}
}
