package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
	"github.com/groupguard/feishu-guard/internal/biz/repo"
	"github.com/groupguard/feishu-guard/internal/state"
)

const (
	// completionTimeout bounds every call into the completion provider
	completionTimeout = 30 * time.Second

	adminRefusal    = "This command is restricted to group admins."
	providerApology = "Sorry, I could not reach the assistant right now. Please try again later."
	groupOnlyNotice = "This command only works in a group chat."
	aiNotConfigured = "AI chat is not configured."
)

// CommandRequest carries the context of one command invocation
type CommandRequest struct {
	Sender  string
	GroupID string // empty outside group chats
	MsgID   string
	Args    string
}

// HandlerFunc executes one command and returns the reply text.
// An empty reply means no message is sent.
type HandlerFunc func(ctx context.Context, req *CommandRequest) string

// ReminderScheduler arranges for a reminder to fire at its deadline
type ReminderScheduler interface {
	Schedule(rem *domain.Reminder)
}

type command struct {
	handler   HandlerFunc
	adminOnly bool
	help      string
}

// DispatchConfig contains dispatcher behavior knobs
type DispatchConfig struct {
	CommandPrefix string
	UserDomain    string
	BannedWords   []string
}

// DispatchUsecase parses command lines and routes them to handlers.
// Privileged commands are gated per-command on the mutable admin set.
type DispatchUsecase struct {
	store      *state.Store
	transport  repo.TransportRepo
	completion repo.CompletionRepo
	audit      repo.AuditRepo
	scheduler  ReminderScheduler
	cfg        DispatchConfig

	registry map[string]command
}

// NewDispatchUsecase creates a dispatcher with the full command registry
func NewDispatchUsecase(
	store *state.Store,
	transport repo.TransportRepo,
	completion repo.CompletionRepo,
	audit repo.AuditRepo,
	scheduler ReminderScheduler,
	cfg DispatchConfig,
) *DispatchUsecase {
	uc := &DispatchUsecase{
		store:      store,
		transport:  transport,
		completion: completion,
		audit:      audit,
		scheduler:  scheduler,
		cfg:        cfg,
	}
	uc.registry = uc.buildRegistry()
	return uc
}

func (uc *DispatchUsecase) buildRegistry() map[string]command {
	return map[string]command{
		"help":      {handler: uc.cmdHelp, help: "help - list available commands"},
		"afk":       {handler: uc.cmdAfk, help: "afk [note] - set your away status"},
		"remind":    {handler: uc.cmdRemind, help: "remind <Nm|Nh|Nd> <text> - schedule a reminder"},
		"poll":      {handler: uc.cmdPoll, help: "poll <question> - create a poll"},
		"calc":      {handler: uc.cmdCalc, help: "calc <expression> - evaluate arithmetic"},
		"convert":   {handler: uc.cmdConvert, help: "convert <amount> <FROM> to <TO> - currency conversion"},
		"ai":        {handler: uc.cmdAI, help: "ai <prompt> - ask the assistant"},
		"translate": {handler: uc.cmdTranslate, help: "translate <language> <text>"},
		"define":    {handler: uc.cmdDefine, help: "define <word> - dictionary lookup"},
		"weather":   {handler: uc.cmdWeather, help: "weather <city>"},

		"welcome": {handler: uc.cmdWelcome, adminOnly: true, help: "welcome [text] - show or set the welcome message"},
		"goodbye": {handler: uc.cmdGoodbye, adminOnly: true, help: "goodbye [text] - show or set the goodbye message"},
		"tagall":  {handler: uc.cmdTagAll, adminOnly: true, help: "tagall [message] - mention everyone"},
		"ban":     {handler: uc.cmdBan, adminOnly: true, help: "ban <user>"},
		"unban":   {handler: uc.cmdUnban, adminOnly: true, help: "unban <user>"},
		"kick":    {handler: uc.cmdKick, adminOnly: true, help: "kick <user> - remove a user from the group"},
		"mute":    {handler: uc.cmdMute, adminOnly: true, help: "mute <user>"},
		"unmute":  {handler: uc.cmdUnmute, adminOnly: true, help: "unmute <user>"},
		"promote": {handler: uc.cmdPromote, adminOnly: true, help: "promote <user> - grant bot admin"},
		"demote":  {handler: uc.cmdDemote, adminOnly: true, help: "demote <user> - revoke bot admin"},
		"lock":    {handler: uc.cmdLock, adminOnly: true, help: "lock - restrict the group to admins"},
		"unlock":  {handler: uc.cmdUnlock, adminOnly: true, help: "unlock"},
		"link":    {handler: uc.cmdLink, adminOnly: true, help: "link allow|block|whitelist|blacklist [domain]"},
		"image":   {handler: uc.cmdImage, adminOnly: true, help: "image <prompt> - generate an image"},
	}
}

// Dispatch routes a prefix-stripped command line to its handler.
// Muted senders get no reply at all; unknown commands get guidance.
func (uc *DispatchUsecase) Dispatch(ctx context.Context, commandLine, sender, groupID, msgID string) string {
	if uc.store.IsMuted(sender) {
		return ""
	}

	line := strings.TrimSpace(commandLine)
	if line == "" {
		return uc.unknownCommand()
	}

	name, args := splitCommand(line)
	cmd, ok := uc.registry[strings.ToLower(name)]
	if !ok {
		return uc.unknownCommand()
	}

	if cmd.adminOnly && !uc.store.IsAdmin(sender) {
		return adminRefusal
	}

	return cmd.handler(ctx, &CommandRequest{
		Sender:  sender,
		GroupID: groupID,
		MsgID:   msgID,
		Args:    args,
	})
}

// splitCommand splits on the first run of whitespace
func splitCommand(line string) (name, args string) {
	idx := strings.IndexFunc(line, unicode.IsSpace)
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx:])
}

func (uc *DispatchUsecase) unknownCommand() string {
	return fmt.Sprintf("Unknown command. Send %shelp for the list of commands.", uc.cfg.CommandPrefix)
}

// normalizeUserID turns a mention, a bare id or a fully qualified id into
// the canonical form used as state keys.
func (uc *DispatchUsecase) normalizeUserID(arg string) string {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(arg, "@") {
		return strings.TrimPrefix(arg, "@") + "@" + uc.cfg.UserDomain
	}
	if !strings.Contains(arg, "@") {
		return arg + "@" + uc.cfg.UserDomain
	}
	return arg
}

// isParticipant checks the transport-reported member list of the group
func (uc *DispatchUsecase) isParticipant(ctx context.Context, groupID, target string) (bool, error) {
	members, err := uc.transport.GetParticipants(ctx, groupID)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m.UserID == target {
			return true, nil
		}
	}
	return false, nil
}

// CompleteChat forwards free text to the completion provider on behalf of
// the AI-chat prefix path.
func (uc *DispatchUsecase) CompleteChat(ctx context.Context, prompt string) string {
	return uc.complete(ctx, prompt)
}

// complete calls the completion provider with a bounded context and
// degrades provider failure to a fixed apology string.
func (uc *DispatchUsecase) complete(ctx context.Context, prompt string) string {
	if uc.completion == nil {
		return aiNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	text, err := uc.completion.Complete(ctx, prompt, 0.7, 500)
	if err != nil {
		log.Error().Err(err).Str("component", "dispatch").Msg("completion failed")
		return providerApology
	}
	return text
}

func (uc *DispatchUsecase) recordAudit(action, target, groupID, reason string) {
	if uc.audit == nil {
		return
	}
	rec := &domain.AuditRecord{
		ID:        uuid.NewString(),
		Action:    action,
		TargetID:  target,
		GroupID:   groupID,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := uc.audit.Record(ctx, rec); err != nil {
		log.Error().Err(err).Str("component", "dispatch").Msg("audit record failed")
	}
}

func (uc *DispatchUsecase) cmdHelp(ctx context.Context, req *CommandRequest) string {
	names := make([]string, 0, len(uc.registry))
	for name := range uc.registry {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, name := range names {
		cmd := uc.registry[name]
		b.WriteString(uc.cfg.CommandPrefix)
		b.WriteString(cmd.help)
		if cmd.adminOnly {
			b.WriteString(" (admin)")
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
