package eeprom

import (
	"fmt"
	"time"

	"github.com/mscrnt/spdtool/internal/spdcore"
)

const maxRetries = 3

// baseBackoff is the unit exponential backoff applies to: 1x, 2x, 4x.
const baseBackoff = 5 * time.Millisecond

// Progress is emitted after each chunk a Read call completes.
type Progress struct {
	Done, Total int
}

// ProgressFunc receives a Progress after every chunk; it may be nil.
type ProgressFunc func(Progress)

// Orchestrator sequences reads and writes against a single Backend. It
// takes no lock of its own: a multi-chunk Read or a multi-byte Write is
// not held exclusive against other callers of the same Backend, whose
// commands can interleave between its chunks or bytes.
type Orchestrator struct {
	backend Backend
	addr    byte
	sleep   func(time.Duration)
}

// New returns an Orchestrator that reads/writes the EEPROM at addr
// through backend.
func New(backend Backend, addr byte) *Orchestrator {
	return &Orchestrator{backend: backend, addr: addr, sleep: time.Sleep}
}

// Read reads length bytes starting at offset, retrying each chunk up to
// maxRetries times with exponential backoff before giving up. On
// permanent failure the bytes already read are returned alongside the
// error, intact up to the point of failure.
func (o *Orchestrator) Read(offset uint16, length int, progress ProgressFunc) ([]byte, error) {
	out := make([]byte, 0, length)
	chunk := o.backend.MaxChunk()
	if chunk <= 0 {
		chunk = 1
	}
	remaining := length
	pos := offset
	for remaining > 0 {
		n := chunk
		if n > remaining {
			n = remaining
		}
		data, err := o.readChunkWithRetry(pos, n)
		if err != nil {
			return out, fmt.Errorf("eeprom: read at offset %d: %w", pos, err)
		}
		out = append(out, data...)
		pos += uint16(n)
		remaining -= n
		if progress != nil {
			progress(Progress{Done: length - remaining, Total: length})
		}
	}
	return out, nil
}

func (o *Orchestrator) readChunkWithRetry(offset uint16, n int) ([]byte, error) {
	backoff := baseBackoff
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			o.sleep(backoff)
			backoff *= 2
		}
		buf, err := o.backend.ReadChunk(o.addr, offset, n)
		if err == nil {
			return buf, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// WriteOnFailure names the caller's choice when UpdateByte write-verify
// exhausts its retries.
type WriteOnFailure int

const (
	// WriteAbort stops the whole Write and returns the exhausted error.
	WriteAbort WriteOnFailure = iota
	// WriteClearRswpAndRetry calls clearRswp then retries this byte once
	// more before giving up for good.
	WriteClearRswpAndRetry
	// WriteIgnoreAndContinue leaves the byte as-is and proceeds.
	WriteIgnoreAndContinue
)

// Write applies image to the EEPROM using UpdateByte semantics: each
// byte is read back first and skipped if already equal, written and
// verified otherwise. onFailure selects what happens when a byte
// exhausts its verify retries; clearRswp is only invoked for
// WriteClearRswpAndRetry and may be nil otherwise.
func (o *Orchestrator) Write(offset uint16, image []byte, onFailure WriteOnFailure, clearRswp func() error, progress ProgressFunc) error {
	for i, want := range image {
		pos := offset + uint16(i)
		if err := o.updateByte(pos, want, onFailure, clearRswp); err != nil {
			return fmt.Errorf("eeprom: write at offset %d: %w", pos, err)
		}
		if progress != nil {
			progress(Progress{Done: i + 1, Total: len(image)})
		}
	}
	return nil
}

// ForceWrite skips the pre-read compare and unconditionally writes every
// byte of image, still verifying each one with the same retry policy.
func (o *Orchestrator) ForceWrite(offset uint16, image []byte, onFailure WriteOnFailure, clearRswp func() error, progress ProgressFunc) error {
	for i, want := range image {
		pos := offset + uint16(i)
		if err := o.writeVerify(pos, want, onFailure, clearRswp); err != nil {
			return fmt.Errorf("eeprom: force write at offset %d: %w", pos, err)
		}
		if progress != nil {
			progress(Progress{Done: i + 1, Total: len(image)})
		}
	}
	return nil
}

func (o *Orchestrator) updateByte(offset uint16, want byte, onFailure WriteOnFailure, clearRswp func() error) error {
	current, err := o.backend.ReadByte(o.addr, offset)
	if err != nil {
		return err
	}
	if current == want {
		return nil
	}
	return o.writeVerify(offset, want, onFailure, clearRswp)
}

func (o *Orchestrator) writeVerify(offset uint16, want byte, onFailure WriteOnFailure, clearRswp func() error) error {
	err := o.writeVerifyOnce(offset, want)
	if err == nil {
		return nil
	}
	switch onFailure {
	case WriteClearRswpAndRetry:
		if clearRswp == nil {
			return fmt.Errorf("%w: no clearRswp provided", err)
		}
		if clearErr := clearRswp(); clearErr != nil {
			return fmt.Errorf("clear rswp: %w (after write failure: %w)", clearErr, err)
		}
		return o.writeVerifyOnce(offset, want)
	case WriteIgnoreAndContinue:
		return nil
	default: // WriteAbort
		return err
	}
}

func (o *Orchestrator) writeVerifyOnce(offset uint16, want byte) error {
	backoff := baseBackoff
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			o.sleep(backoff)
			backoff *= 2
		}
		if err := o.backend.WriteByte(o.addr, offset, want); err != nil {
			lastErr = err
			continue
		}
		got, err := o.backend.ReadByte(o.addr, offset)
		if err != nil {
			lastErr = err
			continue
		}
		if got == want {
			return nil
		}
		lastErr = spdcore.ErrVerifyFailed
	}
	return lastErr
}
