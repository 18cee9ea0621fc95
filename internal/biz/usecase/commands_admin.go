package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
)

func (uc *DispatchUsecase) cmdWelcome(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return fmt.Sprintf("Current welcome message: %s", uc.store.Welcome())
	}
	uc.store.SetWelcome(req.Args)
	return "Welcome message updated."
}

func (uc *DispatchUsecase) cmdGoodbye(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return fmt.Sprintf("Current goodbye message: %s", uc.store.Goodbye())
	}
	uc.store.SetGoodbye(req.Args)
	return "Goodbye message updated."
}

func (uc *DispatchUsecase) cmdTagAll(ctx context.Context, req *CommandRequest) string {
	if req.GroupID == "" {
		return groupOnlyNotice
	}
	members, err := uc.transport.GetParticipants(ctx, req.GroupID)
	if err != nil {
		log.Error().Err(err).Str("group", req.GroupID).Msg("tagall: member list failed")
		return "Could not fetch the member list."
	}
	if len(members) == 0 {
		return "This group has no members to mention."
	}

	var b strings.Builder
	if req.Args != "" {
		b.WriteString(req.Args)
		b.WriteString("\n")
	}
	for _, m := range members {
		name := m.Name
		if name == "" {
			name = m.UserID
		}
		b.WriteString("@")
		b.WriteString(name)
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

func (uc *DispatchUsecase) cmdBan(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: ban <user>"
	}
	if req.GroupID == "" {
		return groupOnlyNotice
	}
	target := uc.normalizeUserID(firstField(req.Args))

	ok, err := uc.isParticipant(ctx, req.GroupID, target)
	if err != nil {
		log.Error().Err(err).Str("group", req.GroupID).Msg("ban: member list failed")
		return "Could not fetch the member list."
	}
	if !ok {
		return fmt.Sprintf("%s is not in this group.", target)
	}

	uc.store.Ban(target)
	uc.recordAudit(domain.AuditActionBan, target, req.GroupID, "banned by "+req.Sender)
	return fmt.Sprintf("%s has been banned.", target)
}

func (uc *DispatchUsecase) cmdUnban(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: unban <user>"
	}
	target := uc.normalizeUserID(firstField(req.Args))
	if !uc.store.Unban(target) {
		return fmt.Sprintf("%s is not banned.", target)
	}
	uc.recordAudit(domain.AuditActionUnban, target, req.GroupID, "unbanned by "+req.Sender)
	return fmt.Sprintf("%s has been unbanned.", target)
}

func (uc *DispatchUsecase) cmdKick(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: kick <user>"
	}
	if req.GroupID == "" {
		return groupOnlyNotice
	}
	target := uc.normalizeUserID(firstField(req.Args))

	ok, err := uc.isParticipant(ctx, req.GroupID, target)
	if err != nil {
		log.Error().Err(err).Str("group", req.GroupID).Msg("kick: member list failed")
		return "Could not fetch the member list."
	}
	if !ok {
		return fmt.Sprintf("%s is not in this group.", target)
	}

	if err := uc.transport.RemoveParticipants(ctx, req.GroupID, []string{target}); err != nil {
		log.Error().Err(err).Str("group", req.GroupID).Str("target", target).Msg("kick: removal failed")
		return fmt.Sprintf("Could not remove %s from the group.", target)
	}
	uc.recordAudit(domain.AuditActionKick, target, req.GroupID, "kicked by "+req.Sender)
	return fmt.Sprintf("%s has been removed from the group.", target)
}

func (uc *DispatchUsecase) cmdMute(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: mute <user>"
	}
	target := uc.normalizeUserID(firstField(req.Args))
	uc.store.SetMuted(target, true)
	return fmt.Sprintf("%s has been muted.", target)
}

func (uc *DispatchUsecase) cmdUnmute(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: unmute <user>"
	}
	target := uc.normalizeUserID(firstField(req.Args))
	uc.store.SetMuted(target, false)
	return fmt.Sprintf("%s has been unmuted.", target)
}

func (uc *DispatchUsecase) cmdPromote(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: promote <user>"
	}
	target := uc.normalizeUserID(firstField(req.Args))
	uc.store.Promote(target)
	return fmt.Sprintf("%s is now a bot admin.", target)
}

func (uc *DispatchUsecase) cmdDemote(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: demote <user>"
	}
	target := uc.normalizeUserID(firstField(req.Args))
	if !uc.store.Demote(target) {
		return fmt.Sprintf("%s is not a bot admin.", target)
	}
	return fmt.Sprintf("%s is no longer a bot admin.", target)
}

func (uc *DispatchUsecase) cmdLock(ctx context.Context, req *CommandRequest) string {
	if req.GroupID == "" {
		return groupOnlyNotice
	}
	uc.store.SetLocked(req.GroupID, true)
	return "Group locked. Only admins can send messages now."
}

func (uc *DispatchUsecase) cmdUnlock(ctx context.Context, req *CommandRequest) string {
	if req.GroupID == "" {
		return groupOnlyNotice
	}
	uc.store.SetLocked(req.GroupID, false)
	return "Group unlocked. Everyone can send messages again."
}

func (uc *DispatchUsecase) cmdLink(ctx context.Context, req *CommandRequest) string {
	sub, rest := splitCommand(req.Args)
	switch strings.ToLower(sub) {
	case "allow":
		if rest == "" {
			return "Usage: link allow <domain>"
		}
		uc.store.AllowDomain(rest)
		return fmt.Sprintf("%s added to the link whitelist.", rest)
	case "block":
		if rest == "" {
			return "Usage: link block <domain>"
		}
		if !uc.store.BlockDomain(rest) {
			return fmt.Sprintf("%s is not in the whitelist.", rest)
		}
		return fmt.Sprintf("%s removed from the link whitelist.", rest)
	case "whitelist":
		domains := uc.store.AllowedDomains()
		if len(domains) == 0 {
			return "The link whitelist is empty."
		}
		return "Allowed link domains:\n" + strings.Join(domains, "\n")
	case "blacklist":
		if len(uc.cfg.BannedWords) == 0 {
			return "No banned words are configured."
		}
		return "Banned words:\n" + strings.Join(uc.cfg.BannedWords, "\n")
	default:
		return "Usage: link allow|block|whitelist|blacklist [domain]"
	}
}

func (uc *DispatchUsecase) cmdImage(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: image <prompt>"
	}
	if uc.completion == nil {
		return "Image generation is not configured."
	}
	ctx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	url, err := uc.completion.GenerateImage(ctx, req.Args)
	if err != nil {
		log.Error().Err(err).Str("component", "dispatch").Msg("image generation failed")
		return providerApology
	}
	return url
}

func firstField(s string) string {
	name, _ := splitCommand(s)
	return name
}
