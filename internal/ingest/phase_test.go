package ingest

import (
	"testing"
	"time"
)

func TestPhaseFor(t *testing.T) {
	start := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		elapsed time.Duration
		exists  bool
		want    Phase
	}{
		{0, false, PhaseProcessing},
		{9 * time.Second, false, PhaseProcessing},
		{10 * time.Second, false, PhaseExtracting},
		{29 * time.Second, false, PhaseExtracting},
		{30 * time.Second, false, PhaseConverting},
		{59 * time.Second, false, PhaseConverting},
		{60 * time.Second, false, PhaseDelayed},
		{10 * time.Minute, false, PhaseDelayed},
		{2 * time.Second, true, PhaseReady},
		{10 * time.Minute, true, PhaseReady},
	}
	for _, tt := range tests {
		if got := PhaseFor(start, start.Add(tt.elapsed), tt.exists); got != tt.want {
			t.Errorf("PhaseFor(%v, exists=%v) = %q, want %q", tt.elapsed, tt.exists, got, tt.want)
		}
	}
}

func TestPhaseMessage(t *testing.T) {
	if got := PhaseDelayed.Message(); got != "taking longer than expected" {
		t.Errorf("PhaseDelayed.Message() = %q", got)
	}
	if got := PhaseExtracting.Message(); got != "extracting" {
		t.Errorf("PhaseExtracting.Message() = %q", got)
	}
}
