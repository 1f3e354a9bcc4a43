package history

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
	"time"
)

// EventKind distinguishes the operations the audit log records.
type EventKind string

const (
	EventRead       EventKind = "read"
	EventWrite      EventKind = "write"
	EventRswp       EventKind = "rswp"
	EventPswp       EventKind = "pswp"
	EventFixCrc     EventKind = "fix_crc"
	EventRevalidate EventKind = "revalidate"
)

// Event is one row of the audit log: a single operation against a
// module at a given I2C address, on a given programmer.
type Event struct {
	ID          int64
	Programmer  string
	Address     byte
	Kind        EventKind
	Module      string // Image.ToString() label, empty if not yet decoded
	CrcValid    *bool  // nil when the operation didn't involve CRC state
	Detail      string
	CreatedAt   time.Time
}

// ModuleSnapshot is the last-known-good decoded image cached for a
// given programmer+address pair, refreshed on every successful read
// whose CRC validates.
type ModuleSnapshot struct {
	Programmer string
	Address    byte
	Module     string
	RawHex     HexBlob
	CrcValid   bool
	UpdatedAt  time.Time
}

// HexBlob stores a raw SPD image as a hex string column so sqlite3's
// TEXT affinity round-trips it without a BLOB binding path.
type HexBlob []byte

func (h HexBlob) Value() (driver.Value, error) {
	return hex.EncodeToString(h), nil
}

func (h *HexBlob) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}
	var s string
	switch v := value.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("history: cannot scan type %T into HexBlob", value)
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("history: decode hex blob: %w", err)
	}
	*h = decoded
	return nil
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	Programmer string
	Address    *byte
	Kind       EventKind
	Since      *time.Time
	Limit      int
}
