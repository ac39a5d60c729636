package scanner

import "fmt"

// ErrKind is the closed taxonomy of reasons a scan step can fail or warn.
// None of them panic out of the Scanner: they are recorded into its error
// log and, for BadConfig/BadOp/OversizeTarget/SetupMissing, turn the current
// scan call into a no-op that preserves the prior result state.
type ErrKind int

const (
	BadConfig ErrKind = iota
	BadOp
	OversizeTarget
	SetupMissing
	Saturated
	TransientFault
	InternalInvariant
	TimingReport
)

func (k ErrKind) String() string {
	switch k {
	case BadConfig:
		return "bad_config"
	case BadOp:
		return "bad_op"
	case OversizeTarget:
		return "oversize_target"
	case SetupMissing:
		return "setup_missing"
	case Saturated:
		return "saturated"
	case TransientFault:
		return "transient_fault"
	case InternalInvariant:
		return "internal_invariant"
	case TimingReport:
		return "timing_report"
	default:
		return fmt.Sprintf("ErrKind(%d)", int(k))
	}
}

// ScanError is one entry in a Scanner's append-only error log.
type ScanError struct {
	Kind    ErrKind
	Message string
}

func (e ScanError) Error() string { return fmt.Sprintf("%s: %s", e.Kind, e.Message) }

func newErr(kind ErrKind, format string, args ...any) ScanError {
	return ScanError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// errorLog is the append-only error list a scan call writes into. It is
// cleared at the start of every first_scan (§4.7 step 1) but never mid-scan,
// and never cleared by rescan — rescan accumulates onto whatever first-scan
// left behind, matching the source's single running error list per Scanner.
type errorLog struct {
	entries []ScanError
}

func (l *errorLog) add(kind ErrKind, format string, args ...any) {
	l.entries = append(l.entries, newErr(kind, format, args...))
}

func (l *errorLog) reset() { l.entries = l.entries[:0] }

func (l *errorLog) strings() []string {
	out := make([]string, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.Error()
	}
	return out
}
