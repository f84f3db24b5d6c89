package desktop

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/micmonay/keybd_event"
)

// keyBonding is the part of keybd_event.KeyBonding the backend uses.
type keyBonding interface {
	SetKeys(keys ...int)
	HasSHIFT(bool)
	Press() error
	Release() error
	Clear()
}

// UInput types through the virtual keyboard keybd_event creates. On Linux
// its key codes are the evdev codes.
type UInput struct {
	logger *slog.Logger
	mu     sync.Mutex
	kb     keyBonding
}

// NewUInput creates the uinput backend.
func NewUInput(logger *slog.Logger) (*UInput, error) {
	kb, err := keybd_event.NewKeyBonding()
	if err != nil {
		return nil, fmt.Errorf("creating uinput desktop keyboard: %w", err)
	}
	return &UInput{logger: logger, kb: &kb}, nil
}

func (u *UInput) TypeString(text string, press bool) error {
	k, ok := Lookup(text)
	if !ok {
		u.logger.Warn("could not map text to a key", "text", text)
		return nil
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.kb.Clear()
	u.kb.SetKeys(int(k.Code))
	u.kb.HasSHIFT(k.Shift)
	var err error
	if press {
		err = u.kb.Press()
	} else {
		err = u.kb.Release()
	}
	if err != nil {
		return fmt.Errorf("uinput key %s: %w", text, err)
	}
	return nil
}
