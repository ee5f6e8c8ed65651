package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guardians/internal/domain"
)

const DefaultCheckDebounce = 500 * time.Millisecond

type SessionState string

const (
	StateIdle          SessionState = "idle"
	StateChecking      SessionState = "checking"
	StateExistingFound SessionState = "existing_found"
	StateNoRecord      SessionState = "no_record"
	StateSubmitting    SessionState = "submitting"
	StateSucceeded     SessionState = "succeeded"
	StateFailed        SessionState = "failed"
)

var (
	ErrSessionBusy     = fmt.Errorf("%w: a check or submission is in flight", domain.ErrNotReady)
	ErrSessionComplete = fmt.Errorf("%w: this fingerprint was already submitted in this session", domain.ErrValidation)
)

// Scheduler runs fn once after d. The returned stop function cancels a call
// that has not started yet.
type Scheduler func(d time.Duration, fn func()) (stop func() bool)

func TimerScheduler(d time.Duration, fn func()) func() bool {
	return time.AfterFunc(d, fn).Stop
}

type SessionOptions struct {
	Debounce  time.Duration
	Scheduler Scheduler
	OnChange  func(SessionSnapshot)
}

type SessionSnapshot struct {
	State              SessionState
	ContentFingerprint string
	Existing           *domain.AttestationRecord
	Result             *SubmitResult
	Err                error
}

// Session drives one interactive attestation form. Fingerprint edits are
// debounced, a newer edit cancels the check in flight, and results of
// superseded checks are dropped by comparing generations.
type Session struct {
	ctrl     *LifecycleController
	base     context.Context
	debounce time.Duration
	schedule Scheduler
	onChange func(SessionSnapshot)

	mu          sync.Mutex
	state       SessionState
	fingerprint string
	existing    *domain.AttestationRecord
	result      *SubmitResult
	err         error
	generation  uint64
	stopTimer   func() bool
	cancelCheck context.CancelFunc
}

func NewSession(ctx context.Context, ctrl *LifecycleController, opts SessionOptions) *Session {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultCheckDebounce
	}
	if opts.Scheduler == nil {
		opts.Scheduler = TimerScheduler
	}
	return &Session{
		ctrl:     ctrl,
		base:     ctx,
		debounce: opts.Debounce,
		schedule: opts.Scheduler,
		onChange: opts.OnChange,
		state:    StateIdle,
	}
}

func (s *Session) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SetContentFingerprint records an edit and schedules the existence check.
func (s *Session) SetContentFingerprint(value string) {
	fp := domain.NormalizeFingerprint(value)
	s.mu.Lock()
	if fp == s.fingerprint && s.state != StateFailed && s.state != StateIdle {
		s.mu.Unlock()
		return
	}
	s.generation++
	gen := s.generation
	s.cancelPendingLocked()
	s.fingerprint = fp
	s.existing = nil
	s.result = nil
	s.err = nil
	s.state = StateIdle
	if fp != "" {
		s.stopTimer = s.schedule(s.debounce, func() { s.runCheck(gen) })
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

func (s *Session) runCheck(gen uint64) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(s.base)
	s.cancelCheck = cancel
	s.stopTimer = nil
	s.state = StateChecking
	fp := s.fingerprint
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	rec, err := s.ctrl.CheckExisting(ctx, fp)
	cancel()

	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.cancelCheck = nil
	switch {
	case err != nil:
		s.state = StateFailed
		s.err = err
	case rec != nil:
		s.state = StateExistingFound
		s.existing = rec
	default:
		s.state = StateNoRecord
	}
	snap = s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)
}

// Submit runs the lifecycle decision for the session fingerprint. It refuses
// while a check or submission is running and after a successful submission.
// Business failures are reported in the result, not as an error.
func (s *Session) Submit(ctx context.Context, form SubmitForm) (SubmitResult, error) {
	s.mu.Lock()
	switch s.state {
	case StateChecking, StateSubmitting:
		s.mu.Unlock()
		return SubmitResult{}, ErrSessionBusy
	case StateSucceeded:
		res := *s.result
		s.mu.Unlock()
		return res, ErrSessionComplete
	}
	s.cancelPendingLocked()
	s.generation++
	gen := s.generation
	if s.fingerprint != "" {
		form.ContentFingerprint = s.fingerprint
	}
	s.state = StateSubmitting
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.notify(snap)

	res := s.ctrl.Submit(ctx, form)

	s.mu.Lock()
	if gen == s.generation {
		s.result = &res
		if res.Success {
			s.state = StateSucceeded
			s.err = nil
		} else {
			s.state = StateFailed
			s.err = res.Err
		}
		snap = s.snapshotLocked()
		s.mu.Unlock()
		s.notify(snap)
		return res, nil
	}
	s.mu.Unlock()
	return res, nil
}

func (s *Session) Close() {
	s.mu.Lock()
	s.generation++
	s.cancelPendingLocked()
	s.mu.Unlock()
}

func (s *Session) cancelPendingLocked() {
	if s.stopTimer != nil {
		s.stopTimer()
		s.stopTimer = nil
	}
	if s.cancelCheck != nil {
		s.cancelCheck()
		s.cancelCheck = nil
	}
}

func (s *Session) snapshotLocked() SessionSnapshot {
	return SessionSnapshot{
		State:              s.state,
		ContentFingerprint: s.fingerprint,
		Existing:           s.existing,
		Result:             s.result,
		Err:                s.err,
	}
}

func (s *Session) notify(snap SessionSnapshot) {
	if s.onChange != nil {
		s.onChange(snap)
	}
}
