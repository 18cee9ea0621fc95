package service

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/groupguard/feishu-guard/internal/biz/domain"
	"github.com/groupguard/feishu-guard/internal/biz/repo"
	"github.com/groupguard/feishu-guard/internal/state"
)

// sendTimeout bounds the transport call made when a reminder fires
const sendTimeout = 10 * time.Second

// ReminderService fires reminders at their deadline. Every reminder runs on
// its own timer; a send failure is logged and not retried, and does not
// affect other reminders.
type ReminderService struct {
	store     *state.Store
	transport repo.TransportRepo

	mu     sync.Mutex
	timers map[int64]*time.Timer
	wg     sync.WaitGroup
}

// NewReminderService creates a new reminder scheduler
func NewReminderService(store *state.Store, transport repo.TransportRepo) *ReminderService {
	return &ReminderService{
		store:     store,
		transport: transport,
		timers:    make(map[int64]*time.Timer),
	}
}

// Schedule arranges for the reminder to fire once at its deadline
func (s *ReminderService) Schedule(rem *domain.Reminder) {
	d := time.Until(rem.FireAt)
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.wg.Add(1)
	s.timers[rem.ID] = time.AfterFunc(d, func() {
		defer s.wg.Done()
		s.fire(rem)
	})
}

// Cancel stops a pending reminder and reports whether it was pending.
// A reminder that already fired (or is firing) cannot be cancelled.
func (s *ReminderService) Cancel(id int64) bool {
	s.mu.Lock()
	timer, ok := s.timers[id]
	if ok {
		delete(s.timers, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	if !timer.Stop() {
		// already fired; fire() cleans up after itself
		return false
	}
	s.wg.Done()
	s.store.RemoveReminder(id)
	return true
}

// Stop cancels all pending reminders and waits for in-flight sends
func (s *ReminderService) Stop() {
	s.mu.Lock()
	for id, timer := range s.timers {
		if timer.Stop() {
			s.wg.Done()
		}
		delete(s.timers, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *ReminderService) fire(rem *domain.Reminder) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := s.transport.Send(ctx, rem.TargetID, "Reminder: "+rem.Message); err != nil {
		log.Error().Err(err).Int64("reminder", rem.ID).Str("target", rem.TargetID).
			Msg("reminder delivery failed")
	}

	// Removed immediately after firing whether or not delivery succeeded
	s.store.RemoveReminder(rem.ID)

	s.mu.Lock()
	delete(s.timers, rem.ID)
	s.mu.Unlock()
}
