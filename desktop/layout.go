package desktop

import (
	"strings"
	"unicode/utf8"

	"github.com/holoplot/go-evdev"

	"github.com/Alia5/macrokey/keys"
)

// Key is a key on a US layout keyboard.
type Key struct {
	Code  evdev.EvCode
	Shift bool
	// Name is the key name the X11 backend uses.
	Name string
}

var special = map[rune]Key{
	' ':  {evdev.KEY_SPACE, false, "space"},
	'\t': {evdev.KEY_TAB, false, "tab"},
	'\r': {evdev.KEY_ENTER, false, "enter"},
	'\n': {evdev.KEY_ENTER, false, "enter"},
	'\b': {evdev.KEY_BACKSPACE, false, "backspace"},
	0x1b: {evdev.KEY_ESC, false, "esc"},
}

// unshifted and shifted punctuation share a key.
var punctuation = []struct {
	plain, shifted rune
	code           evdev.EvCode
}{
	{'`', '~', evdev.KEY_GRAVE},
	{'1', '!', evdev.KEY_1},
	{'2', '@', evdev.KEY_2},
	{'3', '#', evdev.KEY_3},
	{'4', '$', evdev.KEY_4},
	{'5', '%', evdev.KEY_5},
	{'6', '^', evdev.KEY_6},
	{'7', '&', evdev.KEY_7},
	{'8', '*', evdev.KEY_8},
	{'9', '(', evdev.KEY_9},
	{'0', ')', evdev.KEY_0},
	{'-', '_', evdev.KEY_MINUS},
	{'=', '+', evdev.KEY_EQUAL},
	{'[', '{', evdev.KEY_LEFTBRACE},
	{']', '}', evdev.KEY_RIGHTBRACE},
	{'\\', '|', evdev.KEY_BACKSLASH},
	{';', ':', evdev.KEY_SEMICOLON},
	{'\'', '"', evdev.KEY_APOSTROPHE},
	{',', '<', evdev.KEY_COMMA},
	{'.', '>', evdev.KEY_DOT},
	{'/', '?', evdev.KEY_SLASH},
}

var layout = func() map[rune]Key {
	m := make(map[rune]Key, 128)
	for r, k := range special {
		m[r] = k
	}
	for _, p := range punctuation {
		m[p.plain] = Key{p.code, false, string(p.plain)}
		m[p.shifted] = Key{p.code, true, string(p.plain)}
	}
	for r := 'a'; r <= 'z'; r++ {
		code, err := keys.Parse("KEY_" + strings.ToUpper(string(r)))
		if err != nil {
			continue
		}
		m[r] = Key{code.Code, false, string(r)}
		m[r-'a'+'A'] = Key{code.Code, true, string(r)}
	}
	return m
}()

// Lookup maps text to a key. Single characters use the US layout; longer
// text is taken as a key name such as "ctrl", "f5" or "KEY_F5".
func Lookup(text string) (Key, bool) {
	if r, n := utf8.DecodeRuneInString(text); n == len(text) && n > 0 {
		k, ok := layout[r]
		return k, ok
	}
	name := strings.TrimPrefix(strings.ToLower(text), "key_")
	evName := name
	if alias, ok := aliases[name]; ok {
		evName = alias
	}
	code, err := keys.Parse("KEY_" + strings.ToUpper(evName))
	if err != nil || !code.IsKey() {
		return Key{}, false
	}
	return Key{Code: code.Code, Name: name}, true
}

// aliases map common names to evdev key names.
var aliases = map[string]string{
	"ctrl":   "leftctrl",
	"alt":    "leftalt",
	"shift":  "leftshift",
	"cmd":    "leftmeta",
	"super":  "leftmeta",
	"escape": "esc",
	"return": "enter",
}
