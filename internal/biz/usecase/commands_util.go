package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// durationPattern is the fixed reminder grammar: digits followed by m, h or d
var durationPattern = regexp.MustCompile(`^(\d+)([mhd])$`)

// parseReminderDuration converts "10m", "2h" or "1d" into minutes
func parseReminderDuration(s string) (int, bool) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	switch m[2] {
	case "m":
		return n, true
	case "h":
		return n * 60, true
	case "d":
		return n * 1440, true
	}
	return 0, false
}

func (uc *DispatchUsecase) cmdAfk(ctx context.Context, req *CommandRequest) string {
	note := req.Args
	if note == "" {
		note = "AFK"
	}
	uc.store.SetAfk(req.Sender, note)
	return fmt.Sprintf("You are now marked as away: %s", note)
}

func (uc *DispatchUsecase) cmdRemind(ctx context.Context, req *CommandRequest) string {
	durArg, text := splitCommand(req.Args)
	minutes, ok := parseReminderDuration(durArg)
	if !ok || text == "" {
		return "Usage: remind <duration> <text>, where duration is like 10m, 2h or 1d"
	}

	// The reminder is delivered to the invoking sender when it fires.
	rem := uc.store.AddReminder(time.Now().Add(time.Duration(minutes)*time.Minute), text, req.Sender)
	if uc.scheduler != nil {
		uc.scheduler.Schedule(rem)
	}
	return fmt.Sprintf("Reminder #%d set. I will remind you in %d minute(s).", rem.ID, minutes)
}

func (uc *DispatchUsecase) cmdPoll(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: poll <question>"
	}
	p := uc.store.CreatePoll(req.Args, req.Sender, req.GroupID)
	return fmt.Sprintf("Poll #%d created: %s\nReply with your option to vote.", p.ID, p.Question)
}

func (uc *DispatchUsecase) cmdCalc(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: calc <expression>"
	}
	result, err := evalExpression(req.Args)
	if err != nil {
		return fmt.Sprintf("Could not evaluate expression: %v", err)
	}
	return fmt.Sprintf("%s = %s", req.Args, formatCalcResult(result))
}

func (uc *DispatchUsecase) cmdConvert(ctx context.Context, req *CommandRequest) string {
	return convertCurrency(req.Args)
}

func (uc *DispatchUsecase) cmdAI(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: ai <prompt>"
	}
	return uc.complete(ctx, req.Args)
}

func (uc *DispatchUsecase) cmdTranslate(ctx context.Context, req *CommandRequest) string {
	lang, text := splitCommand(req.Args)
	if lang == "" || text == "" {
		return "Usage: translate <language> <text>"
	}
	return uc.complete(ctx, fmt.Sprintf("Translate the following text to %s. Reply with the translation only.\n\n%s", lang, text))
}

func (uc *DispatchUsecase) cmdDefine(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: define <word>"
	}
	return uc.complete(ctx, fmt.Sprintf("Give a concise dictionary definition of %q, with part of speech and one example sentence.", req.Args))
}

func (uc *DispatchUsecase) cmdWeather(ctx context.Context, req *CommandRequest) string {
	if req.Args == "" {
		return "Usage: weather <city>"
	}
	return uc.complete(ctx, fmt.Sprintf("Give a short weather summary for %s. If you cannot know current conditions, describe the typical weather this season.", req.Args))
}
