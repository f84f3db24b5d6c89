package system

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Alia5/macrokey/engine"
	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

var (
	ErrRecordingActive    = errors.New("a recording is already in progress")
	ErrRecordingNotActive = errors.New("not recording")
	ErrRecordingPaused    = errors.New("recording already paused")
	ErrRecordingNotPaused = errors.New("recording not paused")
	ErrRecordingNoTarget  = errors.New("no target key was recorded")
	ErrRecordingNoEvents  = errors.New("no events were recorded")
)

// RecordingState is the phase of a recording session.
type RecordingState uint8

const (
	RecordingIdle RecordingState = iota
	RecordingPaused
	RecordingWaitingForTargetKey
	RecordingWaitingForEvents
	RecordingError
)

func (r RecordingState) String() string {
	switch r {
	case RecordingPaused:
		return "PAUSED"
	case RecordingWaitingForTargetKey:
		return "WAITING_FOR_TARGET_KEY"
	case RecordingWaitingForEvents:
		return "WAITING_FOR_EVENTS"
	case RecordingError:
		return "ERROR"
	}
	return "IDLE"
}

// IsRecording reports whether the session still captures input.
func (r RecordingState) IsRecording() bool {
	switch r {
	case RecordingPaused, RecordingWaitingForTargetKey, RecordingWaitingForEvents:
		return true
	}
	return false
}

// RecordedEvent is one captured transition.
type RecordedEvent struct {
	Code  keys.Code
	State keys.State
	At    time.Time
}

// RecordingSession captures a target key and then the transitions that make
// up the macro bound to it.
type RecordingSession struct {
	device   string
	now      func() time.Time
	unlisten func()

	mu     sync.Mutex
	state  RecordingState
	before RecordingState
	paused bool
	err    error
	target keys.Code
	events []RecordedEvent
}

func (r *RecordingSession) Device() string { return r.device }

func (r *RecordingSession) State() RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Err is the reason the session ended in RecordingError.
func (r *RecordingSession) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Target is the key the recorded macro will be bound to.
func (r *RecordingSession) Target() (keys.Code, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target, r.state != RecordingWaitingForTargetKey && r.target != keys.Code{}
}

func (r *RecordingSession) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (r *RecordingSession) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}

// HandleKey captures transitions from the device keyboard. The target key
// is swallowed, recorded events pass through.
func (r *RecordingSession) HandleKey(code keys.Code, state keys.State, post bool) bool {
	if post || !code.IsKey() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case RecordingWaitingForTargetKey:
		if state == keys.Down {
			r.target = code
			r.state = RecordingWaitingForEvents
		}
		return true
	case RecordingWaitingForEvents:
		if code == r.target {
			return true
		}
		if state != keys.Held {
			r.events = append(r.events, RecordedEvent{Code: code, State: state, At: r.now()})
		}
	}
	return false
}

func (r *RecordingSession) pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.state.IsRecording() {
		return ErrRecordingNotActive
	}
	if r.paused {
		return ErrRecordingPaused
	}
	r.before, r.state, r.paused = r.state, RecordingPaused, true
	return nil
}

func (r *RecordingSession) unpause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return ErrRecordingNotPaused
	}
	r.state, r.paused = r.before, false
	return nil
}

// finish ends the session and builds the script of the recorded events.
func (r *RecordingSession) finish() (*macro.Macro, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state := r.state
	if r.paused {
		state = r.before
	}
	fail := func(err error) (*macro.Macro, error) {
		r.state, r.err, r.paused = RecordingError, err, false
		return nil, err
	}
	switch {
	case state == RecordingWaitingForTargetKey:
		return fail(ErrRecordingNoTarget)
	case len(r.events) == 0:
		return fail(ErrRecordingNoEvents)
	}
	r.state, r.paused = RecordingIdle, false
	return macro.NewScript(keys.NewSequence(keys.Up, r.target), recordedScript(r.events)...), nil
}

// recordedScript turns recorded transitions into upress, urelease and delay lines.
func recordedScript(events []RecordedEvent) []string {
	var lines []string
	for i, ev := range events {
		if i > 0 {
			if ms := ev.At.Sub(events[i-1].At).Milliseconds(); ms > 0 {
				lines = append(lines, "delay "+strconv.FormatInt(ms, 10))
			}
		}
		target, ok := macro.ForEvent(ev.Code)
		if !ok {
			target = macro.TargetKeyboard
		}
		op := "upress"
		if ev.State == keys.Up {
			op = "urelease"
		}
		lines = append(lines, fmt.Sprintf("%s %s %s", op, target, ev.Code))
	}
	return lines
}

// StartRecording begins capturing on uid. The next key pressed becomes the
// target, the transitions after it the recorded macro.
func (s *System) StartRecording(uid string) (*RecordingSession, error) {
	k, err := s.Keyboard(uid)
	if err != nil {
		return nil, err
	}
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.recording != nil && s.recording.State().IsRecording() {
		return nil, ErrRecordingActive
	}
	r := &RecordingSession{device: uid, now: time.Now, state: RecordingWaitingForTargetKey}
	s.recording = r
	r.unlisten = k.AddListener(r)
	s.logger.Info("recording started", "device", uid)
	return r, nil
}

// Recording returns the current or last session.
func (s *System) Recording() *RecordingSession {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	return s.recording
}

func (s *System) PauseRecording() error {
	r, err := s.activeRecording()
	if err != nil {
		return err
	}
	return r.pause()
}

func (s *System) UnpauseRecording() error {
	r, err := s.activeRecording()
	if err != nil {
		return err
	}
	return r.unpause()
}

// StopRecording ends the session and stores the recorded script in the
// active bank, bound to the target key released.
func (s *System) StopRecording() (*macro.Macro, error) {
	r, err := s.activeRecording()
	if err != nil {
		return nil, err
	}
	s.recMu.Lock()
	if r.unlisten != nil {
		r.unlisten()
		r.unlisten = nil
	}
	s.recMu.Unlock()
	m, err := r.finish()
	if err != nil {
		s.logger.Warn("recording failed", "device", r.device, "error", err)
		return nil, err
	}
	var p *macro.Profile
	var b *macro.Bank
	if err := s.read(r.device, func(st *deviceState) { p, b = st.active(), st.bank }); err != nil {
		return nil, err
	}
	b.Add(m)
	if err := s.SaveProfile(p); err != nil {
		return nil, fmt.Errorf("save recording: %w", err)
	}
	s.logger.Info("recording stored", "device", r.device, "sequence", m.ActivatedBy, "lines", len(m.Script))
	return m, nil
}

func (s *System) activeRecording() (*RecordingSession, error) {
	s.recMu.Lock()
	defer s.recMu.Unlock()
	if s.recording == nil || !s.recording.State().IsRecording() {
		return nil, ErrRecordingNotActive
	}
	return s.recording, nil
}

var _ engine.KeyListener = (*RecordingSession)(nil)
