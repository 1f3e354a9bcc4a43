package history_test

import (
	"testing"

	"github.com/mscrnt/spdtool/internal/history"
	"github.com/mscrnt/spdtool/internal/spd"
)

func ddr4Image(t *testing.T) *spd.Image {
	t.Helper()
	data := make([]byte, 512)
	data[0] = byte(3<<0 | 2<<4) // used=384, total=512
	data[2] = 0x0C              // DDR4
	img, err := spd.Detect(data)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	return img
}

func TestSnapshotFromReflectsCrcStatus(t *testing.T) {
	img := ddr4Image(t)
	img.FixCrc()

	snap := history.SnapshotFrom("rig-1", 0x50, img)
	if !snap.CrcValid {
		t.Fatal("expected CrcValid=true after FixCrc")
	}
	if snap.Module != img.ToString() {
		t.Errorf("Module = %q, want %q", snap.Module, img.ToString())
	}
}

// Mirrors the "periodic compatibility re-verification" job: a snapshot
// cached while CRC-valid must report stillValid=false once the cached
// bytes are corrupted out from under it.
func TestRevalidateDetectsRegression(t *testing.T) {
	img := ddr4Image(t)
	img.FixCrc()
	snap := history.SnapshotFrom("rig-1", 0x50, img)

	stillValid, err := history.Revalidate(snap)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if !stillValid {
		t.Fatal("expected stillValid=true immediately after snapshotting a CRC-valid image")
	}

	snap.RawHex[10] ^= 0xFF
	stillValid, err = history.Revalidate(snap)
	if err != nil {
		t.Fatalf("Revalidate after corruption: %v", err)
	}
	if stillValid {
		t.Fatal("expected stillValid=false after corrupting a covered byte")
	}
}
