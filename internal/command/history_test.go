package command

import (
	"testing"
	"time"
)

func TestHistoryRecordAndLastAccepted(t *testing.T) {
	h := NewHistory(0)

	if _, ok := h.LastAccepted("pump1"); ok {
		t.Error("expected no entry for empty history")
	}

	first := New("pump1", KindPower, 50, 0)
	second := New("pump1", KindPower, 75, 0)
	h.Record(first)
	h.Record(second)

	last, ok := h.LastAccepted("pump1")
	if !ok {
		t.Fatal("expected an entry for pump1")
	}
	if last.Command.ID != second.ID {
		t.Errorf("last accepted = %s, want %s", last.Command.ID, second.ID)
	}
	if last.AcceptedAt.IsZero() {
		t.Error("expected AcceptedAt to be stamped")
	}
}

func TestHistoryPerDeviceCap(t *testing.T) {
	h := NewHistory(3)

	var ids []string
	for i := 0; i < 5; i++ {
		cmd := New("pump1", KindPower, float64(i+1), 0)
		ids = append(ids, cmd.ID)
		h.Record(cmd)
	}

	entries := h.ForDevice("pump1")
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}
	// Oldest two dropped
	if entries[0].Command.ID != ids[2] {
		t.Errorf("oldest retained = %s, want %s", entries[0].Command.ID, ids[2])
	}
	if entries[2].Command.ID != ids[4] {
		t.Errorf("newest retained = %s, want %s", entries[2].Command.ID, ids[4])
	}
}

func TestHistoryOutcomes(t *testing.T) {
	h := NewHistory(0)

	ok := New("pump1", KindPower, 50, 0)
	bad := New("pump2", KindPower, 60, time.Second)
	h.Record(ok)
	h.Record(bad)

	h.MarkExecuted(ok.ID)
	h.MarkFailed(bad.ID, "send timed out")
	h.MarkExecuted("no-such-id") // ignored

	entries := h.ForDevice("pump1")
	if entries[0].Status != StatusExecuted {
		t.Errorf("pump1 status = %s, want %s", entries[0].Status, StatusExecuted)
	}

	entries = h.ForDevice("pump2")
	if entries[0].Status != StatusFailed {
		t.Errorf("pump2 status = %s, want %s", entries[0].Status, StatusFailed)
	}
	if entries[0].Error != "send timed out" {
		t.Errorf("pump2 error = %q, want %q", entries[0].Error, "send timed out")
	}
}

func TestHistoryLen(t *testing.T) {
	h := NewHistory(0)
	h.Record(New("pump1", KindPower, 50, 0))
	h.Record(New("pump2", KindPower, 60, 0))
	h.Record(New("pump2", KindPower, 70, 0))

	if got := h.Len(); got != 3 {
		t.Errorf("Len() = %d, want 3", got)
	}
}
