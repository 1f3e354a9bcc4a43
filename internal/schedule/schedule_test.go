package schedule_test

import (
	"path/filepath"
	"testing"

	"github.com/mscrnt/spdtool/internal/eeprom"
	"github.com/mscrnt/spdtool/internal/history"
	"github.com/mscrnt/spdtool/internal/schedule"
	"github.com/mscrnt/spdtool/internal/spd"
)

func openTestStore(t *testing.T) (*history.Store, *schedule.Store) {
	t.Helper()
	h, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	s, err := schedule.NewStore(h)
	if err != nil {
		t.Fatalf("schedule.NewStore: %v", err)
	}
	return h, s
}

func TestCreateJobComputesNextRunTime(t *testing.T) {
	_, s := openTestStore(t)
	job := &schedule.Job{
		Name:       "nightly-rescan",
		CronExpr:   "0 2 * * *",
		Programmer: "rig-1",
		Address:    0x50,
		Length:     512,
		Enabled:    true,
	}
	if err := s.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected non-zero job ID after Create")
	}
	if job.NextRunTime == nil {
		t.Fatal("expected NextRunTime to be computed")
	}
}

func TestCreateJobRejectsBadCronExpr(t *testing.T) {
	_, s := openTestStore(t)
	job := &schedule.Job{Name: "bad", CronExpr: "not a cron expr", Programmer: "rig-1", Length: 512}
	if err := s.Create(job); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestListFiltersByEnabled(t *testing.T) {
	_, s := openTestStore(t)
	enabledJob := &schedule.Job{Name: "on", CronExpr: "* * * * *", Programmer: "rig-1", Length: 512, Enabled: true}
	disabledJob := &schedule.Job{Name: "off", CronExpr: "* * * * *", Programmer: "rig-1", Length: 512, Enabled: false}
	if err := s.Create(enabledJob); err != nil {
		t.Fatalf("Create enabled: %v", err)
	}
	if err := s.Create(disabledJob); err != nil {
		t.Fatalf("Create disabled: %v", err)
	}

	enabled := true
	jobs, err := s.List(schedule.JobFilter{Enabled: &enabled})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Name != "on" {
		t.Fatalf("List(enabled) = %+v, want only 'on'", jobs)
	}
}

func TestDisableThenEnableRecomputesNextRun(t *testing.T) {
	_, s := openTestStore(t)
	job := &schedule.Job{Name: "j", CronExpr: "0 0 * * *", Programmer: "rig-1", Length: 512, Enabled: true}
	if err := s.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Disable(job.ID); err != nil {
		t.Fatalf("Disable: %v", err)
	}
	got, err := s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Enabled {
		t.Fatal("expected job disabled")
	}
	if err := s.Enable(job.ID); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	got, err = s.Get(job.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Enabled || got.NextRunTime == nil {
		t.Fatalf("expected job re-enabled with a recomputed next run time, got %+v", got)
	}
}

// stubRescanner returns a fixed byte slice, simulating a live orchestrator.
type stubRescanner struct{ data []byte }

func (r stubRescanner) Read(offset uint16, length int, _ eeprom.ProgressFunc) ([]byte, error) {
	return r.data[offset : int(offset)+length], nil
}

func ddr4Bytes() []byte {
	data := make([]byte, 512)
	data[0] = byte(3<<0 | 2<<4) // used=384, total=512
	data[2] = 0x0C
	return data
}

func TestRunnerDetectsCrcRegression(t *testing.T) {
	h, s := openTestStore(t)

	job := &schedule.Job{
		Name: "watch-0x50", CronExpr: "* * * * *",
		Programmer: "rig-1", Address: 0x50, Length: 512, Enabled: true,
	}
	if err := s.Create(job); err != nil {
		t.Fatalf("Create: %v", err)
	}

	// Seed a cached snapshot that was CRC-valid.
	goodBytes := ddr4Bytes()
	runner := schedule.NewRunner(s, h, nil)

	// Build a valid image via the same path the orchestrator would:
	// decode, fix CRC, snapshot, then corrupt the device's live bytes.
	img, err := spd.Detect(goodBytes)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	img.FixCrc()
	if err := h.PutSnapshot(&history.ModuleSnapshot{
		Programmer: "rig-1", Address: 0x50, Module: img.ToString(),
		RawHex: history.HexBlob(img.Bytes), CrcValid: true,
	}); err != nil {
		t.Fatalf("PutSnapshot: %v", err)
	}

	corrupted := append([]byte{}, img.Bytes...)
	corrupted[10] ^= 0xFF
	runner.RegisterRescanner("rig-1", stubRescanner{data: corrupted})

	if err := runner.RunNow(job.ID); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	events, err := h.ListEvents(history.EventFilter{Programmer: "rig-1", Kind: history.EventRevalidate})
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("len(events) = %d, want 1", len(events))
	}
	if events[0].CrcValid == nil || *events[0].CrcValid {
		t.Errorf("revalidate event CrcValid = %v, want false", events[0].CrcValid)
	}
}
