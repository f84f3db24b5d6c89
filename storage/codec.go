package storage

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/Alia5/macrokey/keys"
	"github.com/Alia5/macrokey/macro"
)

type profileJSON struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Author              string              `json:"author,omitempty"`
	Icon                string              `json:"icon,omitempty"`
	Background          string              `json:"background,omitempty"`
	IncludeApplications []string            `json:"includeApplications,omitempty"`
	ExcludeApplications []string            `json:"excludeApplications,omitempty"`
	FixedDelays         bool                `json:"fixedDelays"`
	PressDelay          int64               `json:"pressDelay"`
	ReleaseDelay        int64               `json:"releaseDelay"`
	SendDelays          bool                `json:"sendDelays"`
	Models              []string            `json:"models,omitempty"`
	Properties          map[string]any      `json:"properties,omitempty"`
	ReadOnly            bool                `json:"readOnly"`
	Version             float32             `json:"version"`
	BaseProfile         string              `json:"baseProfile,omitempty"`
	Macros              map[string]bankJSON `json:"macros"`
}

type bankJSON struct {
	Bank       int               `json:"bank"`
	Name       string            `json:"name,omitempty"`
	Properties map[string]any    `json:"properties,omitempty"`
	Macros     []json.RawMessage `json:"macros"`
}

// macroJSON holds the fields every macro variant shares. Variant fields are
// added and read by name, keyed on "type".
type macroJSON struct {
	ActivatedBy keys.Sequence    `json:"activatedBy"`
	Name        string           `json:"name,omitempty"`
	RepeatDelay float64          `json:"repeatDelay"`
	RepeatMode  macro.RepeatMode `json:"repeatMode"`
	Type        macro.TargetType `json:"type"`
}

// MarshalProfile encodes p in the on-disk JSON form.
func MarshalProfile(p *macro.Profile) ([]byte, error) {
	pj := profileJSON{
		ID:                  p.ID,
		Name:                p.Name,
		Author:              p.Author,
		Icon:                p.Icon,
		Background:          p.Background,
		IncludeApplications: p.IncludeApplications,
		ExcludeApplications: p.ExcludeApplications,
		FixedDelays:         p.FixedDelays,
		PressDelay:          p.PressDelay,
		ReleaseDelay:        p.ReleaseDelay,
		SendDelays:          p.SendDelays,
		Models:              p.Models,
		Properties:          p.Properties,
		ReadOnly:            p.ReadOnly,
		Version:             p.Version,
		BaseProfile:         p.BaseProfile,
		Macros:              map[string]bankJSON{},
	}
	for _, b := range p.Banks() {
		bj := bankJSON{Bank: b.Number, Name: b.Name, Properties: b.Properties, Macros: []json.RawMessage{}}
		for _, m := range b.Macros() {
			raw, err := MarshalMacro(m)
			if err != nil {
				return nil, fmt.Errorf("bank %d: %w", b.Number, err)
			}
			bj.Macros = append(bj.Macros, raw)
		}
		pj.Macros[strconv.Itoa(b.Number)] = bj
	}
	return json.MarshalIndent(pj, "", "  ")
}

// UnmarshalProfile decodes a profile for device.
func UnmarshalProfile(device string, data []byte) (*macro.Profile, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrCorruptProfile)
	}
	pj := profileJSON{Version: 1}
	if err := json.Unmarshal(data, &pj); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptProfile, err)
	}
	if pj.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrCorruptProfile)
	}
	p := macro.NewProfileWithID(device, pj.ID, pj.Name)
	p.Author = pj.Author
	p.Icon = pj.Icon
	p.Background = pj.Background
	p.IncludeApplications = pj.IncludeApplications
	p.ExcludeApplications = pj.ExcludeApplications
	p.FixedDelays = pj.FixedDelays
	p.PressDelay = pj.PressDelay
	p.ReleaseDelay = pj.ReleaseDelay
	p.SendDelays = pj.SendDelays
	p.Models = pj.Models
	if pj.Properties != nil {
		p.Properties = pj.Properties
	}
	p.ReadOnly = pj.ReadOnly
	p.Version = pj.Version
	p.BaseProfile = pj.BaseProfile

	for _, key := range slices.Sorted(maps.Keys(pj.Macros)) {
		bj := pj.Macros[key]
		b := macro.NewBank(bj.Bank, bj.Name)
		if bj.Properties != nil {
			b.Properties = bj.Properties
		}
		for i, raw := range bj.Macros {
			m, err := UnmarshalMacro(raw)
			if err != nil {
				return nil, fmt.Errorf("bank %d macro %d: %w", bj.Bank, i, err)
			}
			b.Add(m)
		}
		p.PutBank(b)
	}
	return p, nil
}

// MarshalMacro encodes one macro with its variant fields.
func MarshalMacro(m *macro.Macro) ([]byte, error) {
	b, err := json.Marshal(macroJSON{
		ActivatedBy: m.ActivatedBy,
		Name:        m.Name,
		RepeatDelay: m.RepeatDelay,
		RepeatMode:  m.RepeatMode,
		Type:        m.Type,
	})
	if err != nil {
		return nil, err
	}
	set := func(path string, v any) {
		if err == nil {
			b, err = sjson.SetBytes(b, path, v)
		}
	}
	switch m.Kind() {
	case macro.KindRemap:
		set("code", m.Code.Name())
		set("value", m.Value)
		set("passthrough", m.Passthrough)
	case macro.KindCommand:
		set("command", m.Command)
		set("arguments", nonNil(m.Arguments))
	case macro.KindSimple:
		set("macro", m.Text)
	case macro.KindScript:
		set("script", nonNil(m.Script))
	case macro.KindAction:
		set("action", m.Action)
	}
	return b, err
}

// UnmarshalMacro decodes a macro, picking the variant from "type". A missing
// type decodes as a no-op macro.
func UnmarshalMacro(raw []byte) (*macro.Macro, error) {
	t := macro.TargetNothing
	if v := gjson.GetBytes(raw, "type"); v.Exists() {
		var err error
		if t, err = macro.ParseTargetType(v.String()); err != nil {
			return nil, err
		}
	}
	mj := macroJSON{RepeatDelay: macro.DefaultRepeatDelay, Type: t}
	if err := json.Unmarshal(raw, &mj); err != nil {
		return nil, err
	}
	m := &macro.Macro{
		ActivatedBy: mj.ActivatedBy,
		Name:        mj.Name,
		RepeatDelay: mj.RepeatDelay,
		RepeatMode:  mj.RepeatMode,
		Type:        t,
	}
	field := func(name string) gjson.Result { return gjson.GetBytes(raw, name) }
	switch m.Kind() {
	case macro.KindRemap:
		code, err := keys.Parse(field("code").String())
		if err != nil {
			return nil, err
		}
		m.Code = code
		m.Value = int32(field("value").Int())
		m.Passthrough = field("passthrough").Bool()
	case macro.KindCommand:
		m.Command = field("command").String()
		m.Arguments = stringList(field("arguments"))
	case macro.KindSimple:
		m.Text = field("macro").String()
	case macro.KindScript:
		m.Script = stringList(field("script"))
	case macro.KindAction:
		m.Action = field("action").String()
	}
	return m, nil
}

func stringList(r gjson.Result) []string {
	var out []string
	r.ForEach(func(_, v gjson.Result) bool {
		out = append(out, v.String())
		return true
	})
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
