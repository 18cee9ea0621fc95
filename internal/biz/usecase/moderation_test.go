package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
	"github.com/groupguard/feishu-guard/internal/state"
)

func newModerationFixture(allowedDomains, bannedWords []string, maxPerMinute int) (*ModerationUsecase, *state.Store) {
	store := state.NewStore(nil, allowedDomains, "", "")
	uc := NewModerationUsecase(store, nil, ModerationConfig{
		BannedWords:          bannedWords,
		MaxMessagesPerMinute: maxPerMinute,
		MaxWarnings:          3,
	})
	return uc, store
}

func TestEvaluateLinkCheck(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		blocked bool
	}{
		{"no link", "hello there", false},
		{"allowed link", "watch https://www.youtube.com/watch?v=x", false},
		{"disallowed link", "visit https://example.com/offer", true},
		{"mixed links", "https://youtube.com/a and https://spam.biz/b", true},
		{"allowed by substring", "https://m.youtube.com.evil.net/", false}, // loose contains semantics
		{"schemeless host skipped", "see example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uc, _ := newModerationFixture([]string{"youtube.com"}, nil, 100)
			v := uc.Evaluate(tt.body, "u1")
			if v.Blocked != tt.blocked {
				t.Errorf("Evaluate(%q).Blocked = %v, want %v", tt.body, v.Blocked, tt.blocked)
			}
			if tt.blocked {
				if v.Reason != domain.ReasonLinksNotAllowed {
					t.Errorf("reason = %q, want %q", v.Reason, domain.ReasonLinksNotAllowed)
				}
				if !v.DeleteMessage {
					t.Error("blocked link must request message deletion")
				}
			}
		})
	}
}

func TestEvaluateBannedWords(t *testing.T) {
	uc, _ := newModerationFixture([]string{"youtube.com"}, []string{"badword", "Slur"}, 100)

	v := uc.Evaluate("this contains BADWORD inside", "u1")
	assert.True(t, v.Blocked)
	assert.Equal(t, domain.ReasonInappropriateLanguage, v.Reason)
	assert.True(t, v.DeleteMessage)

	// Case-insensitive in both directions
	v = uc.Evaluate("a slur too", "u1")
	assert.True(t, v.Blocked)

	// A banned word blocks even when the message also holds an allowed link:
	// the link check passes first and does not change the outcome
	v = uc.Evaluate("badword https://youtube.com/x", "u1")
	assert.True(t, v.Blocked)
	assert.Equal(t, domain.ReasonInappropriateLanguage, v.Reason)

	v = uc.Evaluate("a clean message", "u1")
	assert.False(t, v.Blocked)
}

func TestEvaluateLinkCheckPrecedesWordCheck(t *testing.T) {
	uc, _ := newModerationFixture(nil, []string{"badword"}, 100)

	// Disallowed link wins over the banned word that appears later in order
	v := uc.Evaluate("badword https://spam.biz/x", "u1")
	assert.True(t, v.Blocked)
	assert.Equal(t, domain.ReasonLinksNotAllowed, v.Reason)
}

func TestEvaluateSpam(t *testing.T) {
	uc, store := newModerationFixture(nil, nil, 3)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	for i := 0; i < 3; i++ {
		v := uc.Evaluate("hello", "u1")
		assert.False(t, v.Blocked, "message %d should pass", i+1)
	}

	v := uc.Evaluate("hello", "u1")
	assert.True(t, v.Blocked)
	assert.Equal(t, domain.ReasonRateLimited, v.Reason)
	assert.False(t, v.DeleteMessage, "rate-limited messages are refused, not deleted")

	// After the window fully elapses the sender is allowed again
	now = now.Add(61 * time.Second)
	v = uc.Evaluate("hello", "u1")
	assert.False(t, v.Blocked)
}

func TestEvaluateBlockedContentNotCounted(t *testing.T) {
	uc, store := newModerationFixture(nil, []string{"badword"}, 2)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store.SetClock(func() time.Time { return now })

	// Content-blocked messages must not consume rate slots
	for i := 0; i < 5; i++ {
		uc.Evaluate("badword", "u1")
	}
	assert.False(t, uc.Evaluate("clean", "u1").Blocked)
	assert.False(t, uc.Evaluate("clean", "u1").Blocked)
	assert.True(t, uc.Evaluate("clean", "u1").Blocked)
}

func TestWarnEscalation(t *testing.T) {
	uc, store := newModerationFixture(nil, nil, 100)

	msg := uc.Warn("u1", "spamming links")
	assert.Equal(t, "Warning 1 of 3: spamming links", msg)

	msg = uc.Warn("u1", "spamming links")
	assert.Equal(t, "Warning 2 of 3: spamming links", msg)

	msg = uc.Warn("u1", "spamming links")
	assert.Equal(t, "You have been banned from using this bot.", msg)
	assert.True(t, store.IsBanned("u1"))

	// Ban is terminal: further warnings keep reporting the ban
	msg = uc.Warn("u1", "again")
	assert.Equal(t, "You have been banned from using this bot.", msg)

	assert.True(t, store.Unban("u1"))
	assert.False(t, store.IsBanned("u1"))
}
