package ingest

import "time"

// Phase is what a status poll reports. Apart from PhaseReady it is derived
// purely from elapsed time; the external converter gives no progress signal.
type Phase string

const (
	PhaseProcessing Phase = "processing"
	PhaseExtracting Phase = "extracting"
	PhaseConverting Phase = "converting"
	PhaseDelayed    Phase = "delayed"
	PhaseReady      Phase = "ready"
)

// Elapsed-time thresholds between phases.
const (
	extractingAfter = 10 * time.Second
	convertingAfter = 30 * time.Second
	delayedAfter    = 60 * time.Second
)

// PhaseFor computes the phase of an upload. It holds no state: every poll
// recomputes it from the upload time, the current time and whether the
// derived object exists.
func PhaseFor(uploadedAt, now time.Time, derivedExists bool) Phase {
	if derivedExists {
		return PhaseReady
	}
	elapsed := now.Sub(uploadedAt)
	switch {
	case elapsed < extractingAfter:
		return PhaseProcessing
	case elapsed < convertingAfter:
		return PhaseExtracting
	case elapsed < delayedAfter:
		return PhaseConverting
	default:
		return PhaseDelayed
	}
}

// Message is the human-readable text shown next to a phase.
func (p Phase) Message() string {
	switch p {
	case PhaseProcessing:
		return "processing"
	case PhaseExtracting:
		return "extracting"
	case PhaseConverting:
		return "converting"
	case PhaseDelayed:
		return "taking longer than expected"
	case PhaseReady:
		return "ready"
	default:
		return string(p)
	}
}
