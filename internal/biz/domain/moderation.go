package domain

import "time"

// Block reasons returned by the moderation pipeline
const (
	ReasonLinksNotAllowed       = "links not allowed"
	ReasonInappropriateLanguage = "inappropriate language"
	ReasonRateLimited           = "rate limited"
)

// Verdict is the result of evaluating one inbound message
type Verdict struct {
	Blocked       bool
	Reason        string
	DeleteMessage bool
}

// AfkRecord represents a sender's away status
type AfkRecord struct {
	Note  string
	Since time.Time
}

// AuditRecord is one entry in the moderation audit log
type AuditRecord struct {
	ID        string
	Action    string
	TargetID  string
	GroupID   string
	Reason    string
	CreatedAt time.Time
}

// Audit actions recorded by the pipeline and the admin commands
const (
	AuditActionBlock = "block"
	AuditActionWarn  = "warn"
	AuditActionBan   = "ban"
	AuditActionUnban = "unban"
	AuditActionKick  = "kick"
)
