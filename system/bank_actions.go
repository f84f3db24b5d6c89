package system

import (
	"strconv"

	"github.com/Alia5/macrokey/macro"
)

func (s *System) registerBankActions() {
	for _, a := range []Action{
		{ID: ActionCycleBank, Perform: s.stepBank(func(n, banks int) (int, bool) {
			if n >= banks-1 {
				return 0, true
			}
			return n + 1, true
		})},
		{ID: ActionNextBank, Perform: s.stepBank(func(n, banks int) (int, bool) {
			return n + 1, n < banks-1
		})},
		{ID: ActionPreviousBank, Perform: s.stepBank(func(n, _ int) (int, bool) {
			return n - 1, n > 0
		})},
	} {
		_ = s.actions.Register(a)
	}
	for i := range DefaultBanks {
		_ = s.actions.Register(Action{
			ID:      ActionBankPrefix + strconv.Itoa(i),
			Perform: s.stepBank(func(int, int) (int, bool) { return i, true }),
		})
	}
}

// stepBank builds an action that moves the device of the binding to the bank
// next picks. next reports false when there is nowhere to go.
func (s *System) stepBank(next func(n, banks int) (int, bool)) func(macro.ActionBinding) bool {
	return func(b macro.ActionBinding) bool {
		var (
			p     *macro.Profile
			cur   int
			banks int
		)
		err := s.read(b.Device, func(st *deviceState) {
			p, banks = st.active(), st.dev.Banks
			if st.bank != nil {
				cur = st.bank.Number
			}
		})
		if err != nil {
			s.logger.Warn("bank action on unknown device", "device", b.Device, "action", b.Action)
			return false
		}
		n, ok := next(cur, banks)
		if !ok {
			return false
		}
		if err := s.SetActiveBank(p, n); err != nil {
			s.logger.Error("failed to switch bank", "device", b.Device, "bank", n, "error", err)
			return false
		}
		return true
	}
}
