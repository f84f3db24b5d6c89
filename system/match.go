package system

import (
	"log/slog"
	"regexp"

	"github.com/Alia5/macrokey/macro"
	"github.com/Alia5/macrokey/window"
)

// appMatch selects a profile by the name of the focused application.
// Patterns must match the whole name.
type appMatch struct {
	id      string
	include []*regexp.Regexp
	exclude []*regexp.Regexp
}

func newAppMatch(p *macro.Profile, logger *slog.Logger) appMatch {
	m := appMatch{id: p.ID}
	compile := func(pats []string) []*regexp.Regexp {
		var out []*regexp.Regexp
		for _, pat := range pats {
			re, err := regexp.Compile(`^(?:` + pat + `)$`)
			if err != nil {
				logger.Warn("ignoring invalid application pattern", "profile", p.Name, "pattern", pat, "error", err)
				continue
			}
			out = append(out, re)
		}
		return out
	}
	m.include = compile(p.IncludeApplications)
	m.exclude = compile(p.ExcludeApplications)
	return m
}

// matches never succeeds without rules.
func (m appMatch) matches(app window.Application) bool {
	if len(m.include) == 0 && len(m.exclude) == 0 {
		return false
	}
	return (len(m.include) == 0 || anyMatch(m.include, app.Name)) && !anyMatch(m.exclude, app.Name)
}

func anyMatch(res []*regexp.Regexp, name string) bool {
	for _, re := range res {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}
