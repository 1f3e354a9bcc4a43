package history

import (
	"fmt"

	"github.com/mscrnt/spdtool/internal/spd"
)

// SnapshotFrom builds a ModuleSnapshot from a decoded image, ready to
// pass to Store.PutSnapshot.
func SnapshotFrom(programmer string, address byte, img *spd.Image) *ModuleSnapshot {
	return &ModuleSnapshot{
		Programmer: programmer,
		Address:    address,
		Module:     img.ToString(),
		RawHex:     append(HexBlob(nil), img.Bytes...),
		CrcValid:   img.CrcStatus(),
	}
}

// Revalidate re-decodes the bytes in a cached snapshot and reports
// whether they still pass CRC validation. It returns false, nil when any
// covered section fails, e.g. after the cached bytes were corrupted;
// snap.CrcValid is not consulted.
func Revalidate(snap *ModuleSnapshot) (stillValid bool, err error) {
	img, err := spd.Detect(snap.RawHex)
	if err != nil {
		return false, fmt.Errorf("history: revalidate: %w", err)
	}
	return img.CrcStatus(), nil
}
