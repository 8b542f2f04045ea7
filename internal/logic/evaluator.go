package logic

// Verdict explains the outcome of evaluating an edge.
type Verdict int

const (
	VerdictQualifying Verdict = iota
	VerdictUnconfigured
	VerdictAtRest
	VerdictNotRunning
)

func (v Verdict) String() string {
	switch v {
	case VerdictQualifying:
		return "qualifying"
	case VerdictUnconfigured:
		return "unconfigured"
	case VerdictAtRest:
		return "at rest"
	case VerdictNotRunning:
		return "machine not running"
	default:
		return "unknown"
	}
}

// Evaluate decides whether an observed level warrants the configured action.
func Evaluate(cfg PinConfig, level Level, state MachineState) Verdict {
	if !cfg.Configured() {
		return VerdictUnconfigured
	}
	if level != cfg.Polarity.ActiveLevel() {
		return VerdictAtRest
	}
	if !state.Halting() {
		return VerdictNotRunning
	}
	return VerdictQualifying
}

// Qualifying reports whether Evaluate returns VerdictQualifying.
func Qualifying(cfg PinConfig, level Level, state MachineState) bool {
	return Evaluate(cfg, level, state) == VerdictQualifying
}
