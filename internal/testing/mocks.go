package testing

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

// Emitted is one event written to a fake virtual device.
type Emitted struct {
	Target macro.TargetType
	Code   keys.Code
	Value  int32
}

func (e Emitted) String() string { return fmt.Sprintf("%s %s %d", e.Target, e.Code, e.Value) }

// Emitter records virtual output.
type Emitter struct {
	mu     sync.Mutex
	events []Emitted
	Err    error
}

func (e *Emitter) Emit(target macro.TargetType, code keys.Code, value int32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.events = append(e.events, Emitted{target, code, value})
	return nil
}

func (e *Emitter) Type(target macro.TargetType, code keys.Code) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Err != nil {
		return e.Err
	}
	e.events = append(e.events, Emitted{target, code, 1}, Emitted{target, code, 0})
	return nil
}

// Events returns a copy of everything emitted so far.
func (e *Emitter) Events() []Emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Emitted(nil), e.events...)
}

// For returns the events emitted for code.
func (e *Emitter) For(code keys.Code) []Emitted {
	var out []Emitted
	for _, ev := range e.Events() {
		if ev.Code == code {
			out = append(out, ev)
		}
	}
	return out
}

func (e *Emitter) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = nil
}

// Desktop records injected text as "+x" for presses and "-x" for releases.
type Desktop struct {
	mu    sync.Mutex
	typed []string
}

func (d *Desktop) TypeString(text string, press bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if press {
		d.typed = append(d.typed, "+"+text)
	} else {
		d.typed = append(d.typed, "-"+text)
	}
	return nil
}

func (d *Desktop) Typed() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.typed...)
}

// Env serves a fixed bank and delays.
type Env struct {
	mu     sync.Mutex
	bank   *macro.Bank
	delays macro.Delays
}

func NewEnv(bank *macro.Bank) *Env { return &Env{bank: bank} }

func (e *Env) ActiveBank() *macro.Bank {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.bank
}

func (e *Env) Delays() macro.Delays {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.delays
}

func (e *Env) SetBank(b *macro.Bank) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bank = b
}

func (e *Env) SetDelays(d macro.Delays) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delays = d
}

// Eventually waits up to a second for cond.
func Eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond, msg)
}
