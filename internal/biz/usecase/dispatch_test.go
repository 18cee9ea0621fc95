package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
	"github.com/groupguard/feishu-guard/internal/state"
)

// Mock implementations

type mockTransport struct {
	mu          sync.Mutex
	members     []domain.Member
	membersErr  error
	removed     [][]string
	removeErr   error
	sent        []string
	sentTargets []string
	deleted     []string
	replied     []string
}

func (m *mockTransport) Reply(ctx context.Context, msgID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replied = append(m.replied, text)
	return nil
}

func (m *mockTransport) Delete(ctx context.Context, msgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, msgID)
	return nil
}

func (m *mockTransport) Send(ctx context.Context, targetID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sentTargets = append(m.sentTargets, targetID)
	m.sent = append(m.sent, text)
	return nil
}

func (m *mockTransport) GetParticipants(ctx context.Context, groupID string) ([]domain.Member, error) {
	return m.members, m.membersErr
}

func (m *mockTransport) RemoveParticipants(ctx context.Context, groupID string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.removeErr != nil {
		return m.removeErr
	}
	m.removed = append(m.removed, ids)
	return nil
}

type mockCompletion struct {
	response string
	imageURL string
	err      error
	prompts  []string
}

func (m *mockCompletion) Complete(ctx context.Context, prompt string, temperature float32, maxTokens int) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockCompletion) GenerateImage(ctx context.Context, prompt string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.imageURL, nil
}

type mockScheduler struct {
	scheduled []*domain.Reminder
}

func (m *mockScheduler) Schedule(rem *domain.Reminder) {
	m.scheduled = append(m.scheduled, rem)
}

type dispatchFixture struct {
	uc        *DispatchUsecase
	store     *state.Store
	transport *mockTransport
	scheduler *mockScheduler
}

func newDispatchFixture(completion *mockCompletion) *dispatchFixture {
	store := state.NewStore([]string{"admin@test.dev"}, []string{"youtube.com"}, "hello {user}", "bye {user}")
	transport := &mockTransport{
		members: []domain.Member{
			{UserID: "admin@test.dev", Name: "Admin", IsAdmin: true},
			{UserID: "alice@test.dev", Name: "Alice"},
			{UserID: "bob@test.dev", Name: "Bob"},
		},
	}
	scheduler := &mockScheduler{}

	cfg := DispatchConfig{
		CommandPrefix: "!",
		UserDomain:    "test.dev",
		BannedWords:   []string{"badword"},
	}

	// A nil *mockCompletion must become a nil interface, not a typed nil
	var uc *DispatchUsecase
	if completion != nil {
		uc = NewDispatchUsecase(store, transport, completion, nil, scheduler, cfg)
	} else {
		uc = NewDispatchUsecase(store, transport, nil, nil, scheduler, cfg)
	}
	return &dispatchFixture{uc: uc, store: store, transport: transport, scheduler: scheduler}
}

const (
	adminSender = "admin@test.dev"
	userSender  = "alice@test.dev"
	groupID     = "oc_group1"
)

func dispatch(f *dispatchFixture, line, sender string) string {
	return f.uc.Dispatch(context.Background(), line, sender, groupID, "msg1")
}

func TestDispatchUnknownCommand(t *testing.T) {
	f := newDispatchFixture(nil)
	reply := dispatch(f, "frobnicate", userSender)
	assert.Equal(t, "Unknown command. Send !help for the list of commands.", reply)
}

func TestDispatchCaseInsensitiveNames(t *testing.T) {
	f := newDispatchFixture(nil)
	reply := dispatch(f, "CALC 2+2", userSender)
	assert.Equal(t, "2+2 = 4", reply)
}

func TestDispatchSplitsOnFirstWhitespaceRun(t *testing.T) {
	f := newDispatchFixture(nil)
	reply := dispatch(f, "calc   2 + 3 * 4", userSender)
	assert.Equal(t, "2 + 3 * 4 = 14", reply)
}

func TestAdminGate(t *testing.T) {
	f := newDispatchFixture(nil)

	// Non-admin invocation returns the refusal and mutates nothing
	reply := dispatch(f, "lock", userSender)
	assert.Equal(t, adminRefusal, reply)
	assert.False(t, f.store.IsLocked(groupID))

	// Admin invocation sets the flag for that group only
	reply = dispatch(f, "lock", adminSender)
	assert.Equal(t, "Group locked. Only admins can send messages now.", reply)
	assert.True(t, f.store.IsLocked(groupID))
	assert.False(t, f.store.IsLocked("oc_other"))

	reply = dispatch(f, "unlock", adminSender)
	assert.Equal(t, "Group unlocked. Everyone can send messages again.", reply)
	assert.False(t, f.store.IsLocked(groupID))
}

func TestAdminGateDoesNotBlockUnprivilegedCommands(t *testing.T) {
	f := newDispatchFixture(nil)
	reply := dispatch(f, "calc 1+1", userSender)
	assert.Equal(t, "1+1 = 2", reply)
}

func TestMutedSenderGetsNoReply(t *testing.T) {
	f := newDispatchFixture(nil)
	f.store.SetMuted(userSender, true)
	assert.Equal(t, "", dispatch(f, "calc 1+1", userSender))

	f.store.SetMuted(userSender, false)
	assert.Equal(t, "1+1 = 2", dispatch(f, "calc 1+1", userSender))
}

func TestNormalizeUserID(t *testing.T) {
	f := newDispatchFixture(nil)
	tests := []struct {
		input    string
		expected string
	}{
		{"@alice", "alice@test.dev"},
		{"alice", "alice@test.dev"},
		{"alice@other.org", "alice@other.org"},
	}
	for _, tt := range tests {
		if got := f.uc.normalizeUserID(tt.input); got != tt.expected {
			t.Errorf("normalizeUserID(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestBanRequiresMembership(t *testing.T) {
	f := newDispatchFixture(nil)

	reply := dispatch(f, "ban stranger", adminSender)
	assert.Equal(t, "stranger@test.dev is not in this group.", reply)
	assert.False(t, f.store.IsBanned("stranger@test.dev"))

	reply = dispatch(f, "ban @alice", adminSender)
	assert.Equal(t, "alice@test.dev has been banned.", reply)
	assert.True(t, f.store.IsBanned("alice@test.dev"))

	reply = dispatch(f, "unban alice", adminSender)
	assert.Equal(t, "alice@test.dev has been unbanned.", reply)
	assert.False(t, f.store.IsBanned("alice@test.dev"))

	reply = dispatch(f, "unban alice", adminSender)
	assert.Equal(t, "alice@test.dev is not banned.", reply)
}

func TestKick(t *testing.T) {
	f := newDispatchFixture(nil)

	reply := dispatch(f, "kick bob", adminSender)
	assert.Equal(t, "bob@test.dev has been removed from the group.", reply)
	assert.Equal(t, [][]string{{"bob@test.dev"}}, f.transport.removed)

	reply = dispatch(f, "kick stranger", adminSender)
	assert.Equal(t, "stranger@test.dev is not in this group.", reply)

	f.transport.removeErr = errors.New("transport down")
	reply = dispatch(f, "kick bob", adminSender)
	assert.Equal(t, "Could not remove bob@test.dev from the group.", reply)
}

func TestMuteUnmute(t *testing.T) {
	f := newDispatchFixture(nil)

	dispatch(f, "mute alice", adminSender)
	assert.True(t, f.store.IsMuted("alice@test.dev"))

	dispatch(f, "unmute alice", adminSender)
	assert.False(t, f.store.IsMuted("alice@test.dev"))
}

func TestPromoteDemote(t *testing.T) {
	f := newDispatchFixture(nil)

	reply := dispatch(f, "promote alice", adminSender)
	assert.Equal(t, "alice@test.dev is now a bot admin.", reply)
	assert.True(t, f.store.IsAdmin("alice@test.dev"))

	// Newly promoted admin can use privileged commands
	reply = dispatch(f, "lock", "alice@test.dev")
	assert.True(t, f.store.IsLocked(groupID))

	reply = dispatch(f, "demote alice", adminSender)
	assert.Equal(t, "alice@test.dev is no longer a bot admin.", reply)
	assert.False(t, f.store.IsAdmin("alice@test.dev"))

	reply = dispatch(f, "demote alice", adminSender)
	assert.Equal(t, "alice@test.dev is not a bot admin.", reply)
}

func TestLinkManagementRoundTrip(t *testing.T) {
	f := newDispatchFixture(nil)

	reply := dispatch(f, "link allow foo.com", adminSender)
	assert.Equal(t, "foo.com added to the link whitelist.", reply)

	reply = dispatch(f, "link whitelist", adminSender)
	assert.Contains(t, reply, "foo.com")
	assert.Contains(t, reply, "youtube.com")

	reply = dispatch(f, "link block foo.com", adminSender)
	assert.Equal(t, "foo.com removed from the link whitelist.", reply)

	reply = dispatch(f, "link whitelist", adminSender)
	assert.NotContains(t, reply, "foo.com")

	reply = dispatch(f, "link block foo.com", adminSender)
	assert.Equal(t, "foo.com is not in the whitelist.", reply)

	reply = dispatch(f, "link blacklist", adminSender)
	assert.Contains(t, reply, "badword")
}

func TestRemind(t *testing.T) {
	f := newDispatchFixture(nil)

	tests := []struct {
		arg     string
		minutes int
	}{
		{"10m", 10},
		{"2h", 120},
		{"1d", 1440},
	}
	for _, tt := range tests {
		minutes, ok := parseReminderDuration(tt.arg)
		if !ok || minutes != tt.minutes {
			t.Errorf("parseReminderDuration(%q) = %d,%v, want %d,true", tt.arg, minutes, ok, tt.minutes)
		}
	}
	for _, bad := range []string{"10x", "abc", "m10", "10", ""} {
		if _, ok := parseReminderDuration(bad); ok {
			t.Errorf("parseReminderDuration(%q) should be rejected", bad)
		}
	}

	reply := dispatch(f, "remind 10m drink water", userSender)
	assert.Equal(t, "Reminder #1 set. I will remind you in 10 minute(s).", reply)
	assert.Len(t, f.scheduler.scheduled, 1)
	// The reminder's recipient is the invoking sender. The original behavior
	// left the recipient unset; delivering to the sender is the inferred intent.
	assert.Equal(t, userSender, f.scheduler.scheduled[0].TargetID)

	reply = dispatch(f, "remind 10x nope", userSender)
	assert.Contains(t, reply, "Usage: remind")
	assert.Len(t, f.scheduler.scheduled, 1)
}

func TestPoll(t *testing.T) {
	f := newDispatchFixture(nil)

	reply := dispatch(f, "poll", userSender)
	assert.Equal(t, "Usage: poll <question>", reply)
	assert.Equal(t, 0, f.store.Polls())

	reply = dispatch(f, "poll tea or coffee?", userSender)
	assert.Contains(t, reply, "Poll #1 created: tea or coffee?")
	assert.Equal(t, 1, f.store.Polls())
}

func TestConvertCurrency(t *testing.T) {
	f := newDispatchFixture(nil)

	reply := dispatch(f, "convert 100 USD to EUR", userSender)
	assert.Equal(t, "100.00 USD = 93.00 EUR (rate 0.9300)", reply)

	reply = dispatch(f, "convert 100 USD to XXX", userSender)
	assert.Contains(t, reply, "Unsupported currency XXX")

	reply = dispatch(f, "convert nonsense", userSender)
	assert.Contains(t, reply, "Usage: convert")
}

func TestAICommand(t *testing.T) {
	comp := &mockCompletion{response: "la réponse"}
	f := newDispatchFixture(comp)

	reply := dispatch(f, "ai what is go", userSender)
	assert.Equal(t, "la réponse", reply)

	comp.err = errors.New("provider timeout")
	reply = dispatch(f, "ai what is go", userSender)
	assert.Equal(t, providerApology, reply)
}

func TestAICommandNotConfigured(t *testing.T) {
	f := newDispatchFixture(nil)
	reply := dispatch(f, "ai hello", userSender)
	assert.Equal(t, aiNotConfigured, reply)
}

func TestImageCommand(t *testing.T) {
	comp := &mockCompletion{imageURL: "https://img.example/x.png"}
	f := newDispatchFixture(comp)

	reply := dispatch(f, "image a cat", adminSender)
	assert.Equal(t, "https://img.example/x.png", reply)

	reply = dispatch(f, "image a cat", userSender)
	assert.Equal(t, adminRefusal, reply)

	f2 := newDispatchFixture(nil)
	reply = dispatch(f2, "image a cat", adminSender)
	assert.Equal(t, "Image generation is not configured.", reply)
}

func TestTagAll(t *testing.T) {
	f := newDispatchFixture(nil)

	reply := dispatch(f, "tagall meeting in 5", adminSender)
	assert.True(t, strings.HasPrefix(reply, "meeting in 5"))
	assert.Contains(t, reply, "@Alice")
	assert.Contains(t, reply, "@Bob")

	reply = f.uc.Dispatch(context.Background(), "tagall", adminSender, "", "msg1")
	assert.Equal(t, groupOnlyNotice, reply)
}

func TestWelcomeGoodbyeTemplates(t *testing.T) {
	f := newDispatchFixture(nil)

	reply := dispatch(f, "welcome", adminSender)
	assert.Equal(t, "Current welcome message: hello {user}", reply)

	reply = dispatch(f, "welcome Hi {user}, read the rules!", adminSender)
	assert.Equal(t, "Welcome message updated.", reply)
	assert.Equal(t, "Hi {user}, read the rules!", f.store.Welcome())

	reply = dispatch(f, "goodbye so long {user}", adminSender)
	assert.Equal(t, "Goodbye message updated.", reply)
	assert.Equal(t, "so long {user}", f.store.Goodbye())
}

func TestAfk(t *testing.T) {
	f := newDispatchFixture(nil)

	reply := dispatch(f, "afk lunch break", userSender)
	assert.Equal(t, "You are now marked as away: lunch break", reply)

	rec, ok := f.store.Afk(userSender)
	assert.True(t, ok)
	assert.Equal(t, "lunch break", rec.Note)

	// Each invocation overwrites the previous note
	dispatch(f, "afk gone fishing", userSender)
	rec, _ = f.store.Afk(userSender)
	assert.Equal(t, "gone fishing", rec.Note)
}

func TestHelpListsCommands(t *testing.T) {
	f := newDispatchFixture(nil)
	reply := dispatch(f, "help", userSender)
	assert.Contains(t, reply, "!calc")
	assert.Contains(t, reply, "!ban")
	assert.Contains(t, reply, "(admin)")
}
