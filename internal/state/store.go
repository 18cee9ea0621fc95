// Package state holds all mutable runtime state of the bot in memory.
// Every concern is guarded by its own lock so that concurrent messages
// from different senders only contend when they touch the same data.
package state

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
)

// rateWindow is the sliding window length for spam detection
const rateWindow = 60 * time.Second

// Store owns all per-sender and per-group runtime state.
// State is in-memory only and lives for the process lifetime.
type Store struct {
	now func() time.Time

	rateMu      sync.Mutex
	rateWindows map[string][]time.Time

	warnMu   sync.Mutex
	warnings map[string]int

	banMu sync.RWMutex
	bans  map[string]struct{}

	muteMu sync.RWMutex
	mutes  map[string]struct{}

	lockMu sync.RWMutex
	locks  map[string]struct{}

	afkMu sync.RWMutex
	afk   map[string]domain.AfkRecord

	pollMu     sync.Mutex
	polls      map[int64]*domain.Poll
	nextPollID int64

	remindMu       sync.Mutex
	reminders      map[int64]*domain.Reminder
	nextReminderID int64

	adminMu sync.RWMutex
	admins  map[string]struct{}

	domainMu       sync.RWMutex
	allowedDomains []string

	tmplMu  sync.RWMutex
	welcome string
	goodbye string
}

// NewStore creates a store seeded with the configured admins,
// allowed link domains and message templates.
func NewStore(admins, allowedDomains []string, welcome, goodbye string) *Store {
	s := &Store{
		now:         time.Now,
		rateWindows: make(map[string][]time.Time),
		warnings:    make(map[string]int),
		bans:        make(map[string]struct{}),
		mutes:       make(map[string]struct{}),
		locks:       make(map[string]struct{}),
		afk:         make(map[string]domain.AfkRecord),
		polls:       make(map[int64]*domain.Poll),
		reminders:   make(map[int64]*domain.Reminder),
		admins:      make(map[string]struct{}),
		welcome:     welcome,
		goodbye:     goodbye,
	}
	for _, a := range admins {
		s.admins[a] = struct{}{}
	}
	s.allowedDomains = append(s.allowedDomains, allowedDomains...)
	return s
}

// SetClock overrides the time source, for tests
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// TakeRateSlot prunes the sender's rate window to the last 60 seconds
// and reports whether the sender may send another message. When allowed,
// the current timestamp is recorded in the window; when the window is
// already at capacity nothing is recorded.
func (s *Store) TakeRateSlot(sender string, maxPerMinute int) bool {
	s.rateMu.Lock()
	defer s.rateMu.Unlock()

	now := s.now()
	cutoff := now.Add(-rateWindow)

	window := s.rateWindows[sender]
	pruned := window[:0]
	for _, ts := range window {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}

	if len(pruned) >= maxPerMinute {
		s.rateWindows[sender] = pruned
		return false
	}

	s.rateWindows[sender] = append(pruned, now)
	return true
}

// Warn increments the sender's warning counter. When the new count reaches
// maxWarnings the sender is added to the ban set atomically. The counter is
// not reset on ban; the ban is terminal until an explicit unban.
func (s *Store) Warn(sender string, maxWarnings int) (count int, banned bool) {
	s.warnMu.Lock()
	defer s.warnMu.Unlock()

	s.warnings[sender]++
	count = s.warnings[sender]
	if count >= maxWarnings {
		s.Ban(sender)
		return count, true
	}
	return count, false
}

// Warnings returns the sender's current warning count
func (s *Store) Warnings(sender string) int {
	s.warnMu.Lock()
	defer s.warnMu.Unlock()
	return s.warnings[sender]
}

// Ban adds a sender to the ban set. Adding twice is a no-op.
func (s *Store) Ban(sender string) {
	s.banMu.Lock()
	defer s.banMu.Unlock()
	s.bans[sender] = struct{}{}
}

// Unban removes a sender from the ban set and reports whether it was present
func (s *Store) Unban(sender string) bool {
	s.banMu.Lock()
	defer s.banMu.Unlock()
	if _, ok := s.bans[sender]; !ok {
		return false
	}
	delete(s.bans, sender)
	return true
}

// IsBanned reports whether the sender is banned
func (s *Store) IsBanned(sender string) bool {
	s.banMu.RLock()
	defer s.banMu.RUnlock()
	_, ok := s.bans[sender]
	return ok
}

// Bans returns the banned sender ids, sorted
func (s *Store) Bans() []string {
	s.banMu.RLock()
	defer s.banMu.RUnlock()
	out := make([]string, 0, len(s.bans))
	for id := range s.bans {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SetMuted sets or clears a sender's mute flag
func (s *Store) SetMuted(sender string, muted bool) {
	s.muteMu.Lock()
	defer s.muteMu.Unlock()
	if muted {
		s.mutes[sender] = struct{}{}
	} else {
		delete(s.mutes, sender)
	}
}

// IsMuted reports whether the sender's commands are suppressed
func (s *Store) IsMuted(sender string) bool {
	s.muteMu.RLock()
	defer s.muteMu.RUnlock()
	_, ok := s.mutes[sender]
	return ok
}

// SetLocked sets or clears a group's lock flag
func (s *Store) SetLocked(groupID string, locked bool) {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	if locked {
		s.locks[groupID] = struct{}{}
	} else {
		delete(s.locks, groupID)
	}
}

// IsLocked reports whether a group is restricted to admins
func (s *Store) IsLocked(groupID string) bool {
	s.lockMu.RLock()
	defer s.lockMu.RUnlock()
	_, ok := s.locks[groupID]
	return ok
}

// SetAfk records the sender's away status, overwriting any previous record
func (s *Store) SetAfk(sender, note string) {
	s.afkMu.Lock()
	defer s.afkMu.Unlock()
	s.afk[sender] = domain.AfkRecord{Note: note, Since: s.now()}
}

// Afk returns the sender's away record, if any
func (s *Store) Afk(sender string) (domain.AfkRecord, bool) {
	s.afkMu.RLock()
	defer s.afkMu.RUnlock()
	rec, ok := s.afk[sender]
	return rec, ok
}

// ClearAfk removes the sender's away record and reports whether one existed
func (s *Store) ClearAfk(sender string) bool {
	s.afkMu.Lock()
	defer s.afkMu.Unlock()
	if _, ok := s.afk[sender]; !ok {
		return false
	}
	delete(s.afk, sender)
	return true
}

// CreatePoll creates a poll with an empty vote tally and a unique id
func (s *Store) CreatePoll(question, creator, groupID string) *domain.Poll {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	s.nextPollID++
	p := &domain.Poll{
		ID:       s.nextPollID,
		Question: question,
		Creator:  creator,
		GroupID:  groupID,
		Votes:    make(map[string]int),
	}
	s.polls[p.ID] = p
	return p
}

// Polls returns the number of active polls
func (s *Store) Polls() int {
	s.pollMu.Lock()
	defer s.pollMu.Unlock()
	return len(s.polls)
}

// AddReminder creates a reminder with a unique id
func (s *Store) AddReminder(fireAt time.Time, message, targetID string) *domain.Reminder {
	s.remindMu.Lock()
	defer s.remindMu.Unlock()
	s.nextReminderID++
	r := &domain.Reminder{
		ID:       s.nextReminderID,
		FireAt:   fireAt,
		Message:  message,
		TargetID: targetID,
	}
	s.reminders[r.ID] = r
	return r
}

// RemoveReminder removes a reminder and reports whether it existed
func (s *Store) RemoveReminder(id int64) bool {
	s.remindMu.Lock()
	defer s.remindMu.Unlock()
	if _, ok := s.reminders[id]; !ok {
		return false
	}
	delete(s.reminders, id)
	return true
}

// PendingReminders returns the number of reminders not yet fired
func (s *Store) PendingReminders() int {
	s.remindMu.Lock()
	defer s.remindMu.Unlock()
	return len(s.reminders)
}

// IsAdmin reports whether the sender is in the admin set
func (s *Store) IsAdmin(sender string) bool {
	s.adminMu.RLock()
	defer s.adminMu.RUnlock()
	_, ok := s.admins[sender]
	return ok
}

// Promote adds a sender to the admin set
func (s *Store) Promote(sender string) {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	s.admins[sender] = struct{}{}
}

// Demote removes a sender from the admin set and reports whether it was present
func (s *Store) Demote(sender string) bool {
	s.adminMu.Lock()
	defer s.adminMu.Unlock()
	if _, ok := s.admins[sender]; !ok {
		return false
	}
	delete(s.admins, sender)
	return true
}

// Admins returns the admin ids, sorted
func (s *Store) Admins() []string {
	s.adminMu.RLock()
	defer s.adminMu.RUnlock()
	out := make([]string, 0, len(s.admins))
	for id := range s.admins {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// AllowDomain appends a domain to the allow-list. Duplicates are accepted.
func (s *Store) AllowDomain(d string) {
	s.domainMu.Lock()
	defer s.domainMu.Unlock()
	s.allowedDomains = append(s.allowedDomains, d)
}

// BlockDomain removes the first exact match from the allow-list
// and reports whether one was found.
func (s *Store) BlockDomain(d string) bool {
	s.domainMu.Lock()
	defer s.domainMu.Unlock()
	for i, entry := range s.allowedDomains {
		if entry == d {
			s.allowedDomains = append(s.allowedDomains[:i], s.allowedDomains[i+1:]...)
			return true
		}
	}
	return false
}

// AllowedDomains returns a copy of the allow-list in insertion order
func (s *Store) AllowedDomains() []string {
	s.domainMu.RLock()
	defer s.domainMu.RUnlock()
	out := make([]string, len(s.allowedDomains))
	copy(out, s.allowedDomains)
	return out
}

// DomainAllowed reports whether the hostname contains any allow-list entry
// as a substring. An empty allow-list permits nothing.
func (s *Store) DomainAllowed(hostname string) bool {
	s.domainMu.RLock()
	defer s.domainMu.RUnlock()
	for _, entry := range s.allowedDomains {
		if strings.Contains(hostname, entry) {
			return true
		}
	}
	return false
}

// Welcome returns the welcome template
func (s *Store) Welcome() string {
	s.tmplMu.RLock()
	defer s.tmplMu.RUnlock()
	return s.welcome
}

// SetWelcome replaces the welcome template
func (s *Store) SetWelcome(t string) {
	s.tmplMu.Lock()
	defer s.tmplMu.Unlock()
	s.welcome = t
}

// Goodbye returns the goodbye template
func (s *Store) Goodbye() string {
	s.tmplMu.RLock()
	defer s.tmplMu.RUnlock()
	return s.goodbye
}

// SetGoodbye replaces the goodbye template
func (s *Store) SetGoodbye(t string) {
	s.tmplMu.Lock()
	defer s.tmplMu.Unlock()
	s.goodbye = t
}

// Snapshot is a read-only view of store counters for the status API
type Snapshot struct {
	Bans             int `json:"bans"`
	Mutes            int `json:"mutes"`
	LockedGroups     int `json:"locked_groups"`
	ActivePolls      int `json:"active_polls"`
	PendingReminders int `json:"pending_reminders"`
	AfkUsers         int `json:"afk_users"`
	AllowedDomains   int `json:"allowed_domains"`
	Admins           int `json:"admins"`
}

// StatusSnapshot returns current counters for the status API
func (s *Store) StatusSnapshot() Snapshot {
	snap := Snapshot{
		ActivePolls:      s.Polls(),
		PendingReminders: s.PendingReminders(),
	}

	s.banMu.RLock()
	snap.Bans = len(s.bans)
	s.banMu.RUnlock()

	s.muteMu.RLock()
	snap.Mutes = len(s.mutes)
	s.muteMu.RUnlock()

	s.lockMu.RLock()
	snap.LockedGroups = len(s.locks)
	s.lockMu.RUnlock()

	s.afkMu.RLock()
	snap.AfkUsers = len(s.afk)
	s.afkMu.RUnlock()

	s.domainMu.RLock()
	snap.AllowedDomains = len(s.allowedDomains)
	s.domainMu.RUnlock()

	s.adminMu.RLock()
	snap.Admins = len(s.admins)
	s.adminMu.RUnlock()

	return snap
}
