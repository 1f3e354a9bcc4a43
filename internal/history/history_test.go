package history_test

import (
	"path/filepath"
	"testing"

	"github.com/mscrnt/spdtool/internal/history"
)

func openTestStore(t *testing.T) *history.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := history.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndListEvents(t *testing.T) {
	s := openTestStore(t)

	valid := true
	if err := s.RecordEvent(&history.Event{
		Programmer: "rig-1",
		Address:    0x50,
		Kind:       history.EventRead,
		Module:     "DDR4 Micron 16GB",
		CrcValid:   &valid,
	}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if err := s.RecordEvent(&history.Event{
		Programmer: "rig-1",
		Address:    0x52,
		Kind:       history.EventRswp,
		Detail:     "block 2 enabled",
	}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	events, err := s.ListEvents(history.EventFilter{Programmer: "rig-1"})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	// newest first
	if events[0].Kind != history.EventRswp {
		t.Errorf("events[0].Kind = %v, want %v", events[0].Kind, history.EventRswp)
	}
	if events[1].CrcValid == nil || !*events[1].CrcValid {
		t.Errorf("events[1].CrcValid = %v, want true", events[1].CrcValid)
	}
}

func TestListEventsFilterByKind(t *testing.T) {
	s := openTestStore(t)
	_ = s.RecordEvent(&history.Event{Programmer: "rig-1", Address: 0x50, Kind: history.EventRead})
	_ = s.RecordEvent(&history.Event{Programmer: "rig-1", Address: 0x50, Kind: history.EventWrite})

	events, err := s.ListEvents(history.EventFilter{Kind: history.EventWrite})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 || events[0].Kind != history.EventWrite {
		t.Fatalf("ListEvents filter by kind returned %+v", events)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := openTestStore(t)
	raw := make(history.HexBlob, 384)
	for i := range raw {
		raw[i] = byte(i)
	}

	if err := s.PutSnapshot(&history.ModuleSnapshot{
		Programmer: "rig-1",
		Address:    0x50,
		Module:     "DDR4 test module",
		RawHex:     raw,
		CrcValid:   true,
	}); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	got, err := s.GetSnapshot("rig-1", 0x50)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got == nil {
		t.Fatal("GetSnapshot returned nil, want a snapshot")
	}
	if got.Module != "DDR4 test module" || !got.CrcValid {
		t.Errorf("GetSnapshot = %+v", got)
	}
	if len(got.RawHex) != len(raw) {
		t.Fatalf("RawHex length = %d, want %d", len(got.RawHex), len(raw))
	}
	for i := range raw {
		if got.RawHex[i] != raw[i] {
			t.Fatalf("RawHex[%d] = %d, want %d", i, got.RawHex[i], raw[i])
		}
	}
}

func TestPutSnapshotUpserts(t *testing.T) {
	s := openTestStore(t)
	mk := func(valid bool) *history.ModuleSnapshot {
		return &history.ModuleSnapshot{
			Programmer: "rig-1", Address: 0x50, Module: "m",
			RawHex: history.HexBlob{1, 2, 3}, CrcValid: valid,
		}
	}
	if err := s.PutSnapshot(mk(true)); err != nil {
		t.Fatalf("PutSnapshot 1: %v", err)
	}
	if err := s.PutSnapshot(mk(false)); err != nil {
		t.Fatalf("PutSnapshot 2: %v", err)
	}

	snaps, err := s.ListSnapshots("rig-1")
	if err != nil {
		t.Fatalf("ListSnapshots: %v", err)
	}
	if len(snaps) != 1 {
		t.Fatalf("len(snaps) = %d, want 1 (upsert should not duplicate)", len(snaps))
	}
	if snaps[0].CrcValid {
		t.Errorf("CrcValid = true, want false after second put")
	}
}

func TestGetSnapshotMissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	got, err := s.GetSnapshot("rig-1", 0x50)
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	if got != nil {
		t.Errorf("GetSnapshot = %+v, want nil", got)
	}
}
