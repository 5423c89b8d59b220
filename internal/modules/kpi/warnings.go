package kpi

import "fmt"

// WarningCode classifies a data-integrity finding.
type WarningCode string

const (
	// WarnConflictingExit means an animal carries both a sale and a death
	// record. The resolver keeps the earlier-dated exit.
	WarnConflictingExit WarningCode = "conflicting_exit"
	// WarnWeighingBeforeEntry means a weight event predates the entry date.
	WarnWeighingBeforeEntry WarningCode = "weighing_before_entry"
	// WarnNegativeGain means a weight point is lower than its predecessor.
	WarnNegativeGain WarningCode = "negative_gain"
	// WarnEventAfterExit means an event is dated after the animal exited.
	WarnEventAfterExit WarningCode = "event_after_exit"
)

// Warning is a data-integrity finding surfaced on a snapshot. Warnings are
// advisory: computation continues and the malformed animal never blocks its
// batch peers.
type Warning struct {
	Code    WarningCode `json:"code"`
	EarTag  string      `json:"ear_tag"`
	Message string      `json:"message"`
}

func warnf(code WarningCode, earTag, format string, args ...interface{}) Warning {
	return Warning{
		Code:    code,
		EarTag:  earTag,
		Message: fmt.Sprintf(format, args...),
	}
}
