package system

import (
	"sync"

	"github.com/Alia5/macrokey/macro"
)

// ActiveBankListener is told when a device switches bank.
type ActiveBankListener interface {
	ActiveBankChanged(device string, bank *macro.Bank)
}

// ActiveProfileListener is told when a device switches profile.
type ActiveProfileListener interface {
	ActiveProfileChanged(device string, p *macro.Profile)
}

// ProfileListener is told when a profile or its defaults change.
type ProfileListener interface {
	ProfileChanged(device string, p *macro.Profile)
}

// SystemListener is told when profiles are created or removed.
type SystemListener interface {
	SystemChanged()
}

type (
	ActiveBankFunc    func(device string, bank *macro.Bank)
	ActiveProfileFunc func(device string, p *macro.Profile)
	ProfileFunc       func(device string, p *macro.Profile)
	SystemFunc        func()
)

func (f ActiveBankFunc) ActiveBankChanged(device string, b *macro.Bank) { f(device, b) }
func (f ActiveProfileFunc) ActiveProfileChanged(device string, p *macro.Profile) { f(device, p) }
func (f ProfileFunc) ProfileChanged(device string, p *macro.Profile) { f(device, p) }
func (f SystemFunc) SystemChanged() { f() }

// listeners is a registration list. Removal goes through the func returned
// by add, so listeners need not be comparable.
type listeners[T any] struct {
	mu   sync.Mutex
	next int
	m    map[int]T
	ids  []int
}

func (l *listeners[T]) add(v T) (remove func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.m == nil {
		l.m = map[int]T{}
	}
	id := l.next
	l.next++
	l.m[id] = v
	l.ids = append(l.ids, id)
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.m, id)
		for i, x := range l.ids {
			if x == id {
				l.ids = append(l.ids[:i:i], l.ids[i+1:]...)
				break
			}
		}
	}
}

func (l *listeners[T]) each(fn func(T)) {
	l.mu.Lock()
	vs := make([]T, 0, len(l.ids))
	for _, id := range l.ids {
		vs = append(vs, l.m[id])
	}
	l.mu.Unlock()
	for _, v := range vs {
		fn(v)
	}
}
