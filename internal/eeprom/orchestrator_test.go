package eeprom

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mscrnt/spdtool/internal/smbus"
	"github.com/mscrnt/spdtool/internal/spdcore"
)

func fakeBackend(t *testing.T, img []byte) (*Orchestrator, *smbus.Fake) {
	t.Helper()
	fake := smbus.NewFake(len(img), map[byte][]byte{0x50: img})
	o := New(SMBusBackend{Adapter: fake, Index: 0}, 0x50)
	o.sleep = func(time.Duration) {} // don't actually wait in tests
	return o, fake
}

func TestReadChunked(t *testing.T) {
	img := make([]byte, 8)
	for i := range img {
		img[i] = byte(i)
	}
	o, _ := fakeBackend(t, img)
	var calls []Progress
	data, err := o.Read(0, 8, func(p Progress) { calls = append(calls, p) })
	require.NoError(t, err)
	require.Equal(t, img, data)
	require.Len(t, calls, 8, "SMBusBackend chunks by 1")
}

func TestWriteSkipsEqualBytes(t *testing.T) {
	img := []byte{1, 2, 3, 4}
	o, fake := fakeBackend(t, img)
	want := []byte{1, 9, 3, 4} // only index 1 differs
	if err := o.Write(0, want, WriteAbort, nil, nil); err != nil {
		t.Fatalf("Write: %v", err)
	}
	for i, v := range want {
		if fake.Modules[0x50][i] != v {
			t.Errorf("byte %d = %d, want %d", i, fake.Modules[0x50][i], v)
		}
	}
}

func TestUpdateByteIdempotent(t *testing.T) {
	img := []byte{1, 2, 3}
	o, fake := fakeBackend(t, img)
	want := []byte{9, 9, 9}
	if err := o.Write(0, want, WriteAbort, nil, nil); err != nil {
		t.Fatalf("first write: %v", err)
	}
	first := append([]byte{}, fake.Modules[0x50]...)
	if err := o.Write(0, want, WriteAbort, nil, nil); err != nil {
		t.Fatalf("second write: %v", err)
	}
	second := fake.Modules[0x50]
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("byte %d changed on repeat write: %d -> %d", i, first[i], second[i])
		}
	}
}

// stuckBackend always fails WriteByte, to exercise the write-failure
// policies without a real verify mismatch.
type stuckBackend struct {
	img []byte
}

func (b *stuckBackend) ReadByte(_ byte, offset uint16) (byte, error) {
	return b.img[offset], nil
}
func (b *stuckBackend) ReadChunk(_ byte, offset uint16, n int) ([]byte, error) {
	return append([]byte{}, b.img[offset:int(offset)+n]...), nil
}
func (b *stuckBackend) WriteByte(_ byte, offset uint16, value byte) error {
	return errors.New("stuck: write always fails")
}
func (b *stuckBackend) MaxChunk() int { return 1 }

// countingSessionReader wraps a sessionReader and counts how many times
// Read is called, to verify chunked reads issue one wire call per chunk
// rather than one per byte.
type countingSessionReader struct {
	sessionReader
	reads *int
}

func (r countingSessionReader) Read(addr byte, offset uint16, length int) ([]byte, error) {
	*r.reads++
	return r.sessionReader.Read(addr, offset, length)
}

func TestSessionBackendReadChunkIsOneWireCallPerChunk(t *testing.T) {
	img := make([]byte, 32)
	for i := range img {
		img[i] = byte(i)
	}
	fake := &fakeSessionReader{img: img}
	reads := 0
	backend := SessionBackend{Session: countingSessionReader{sessionReader: fake, reads: &reads}}
	o := New(backend, 0x50)
	o.sleep = func(time.Duration) {}

	data, err := o.Read(0, 32, nil)
	require.NoError(t, err)
	require.Equal(t, img, data)
	require.Equal(t, 1, reads, "expected one wire Read per 32-byte chunk, not one per byte")
}

// fakeSessionReader is a minimal sessionReader that serves Read directly
// out of an in-memory image, with no retry or error injection.
type fakeSessionReader struct {
	img []byte
}

func (f *fakeSessionReader) Read(_ byte, offset uint16, length int) ([]byte, error) {
	return append([]byte{}, f.img[offset:int(offset)+length]...), nil
}

func (f *fakeSessionReader) Write(_ byte, offset uint16, value byte) error {
	f.img[offset] = value
	return nil
}

func TestWriteAbortOnExhaustedRetries(t *testing.T) {
	backend := &stuckBackend{img: []byte{1, 2, 3}}
	o := New(backend, 0x50)
	o.sleep = func(time.Duration) {}
	err := o.Write(0, []byte{9, 2, 3}, WriteAbort, nil, nil)
	if err == nil {
		t.Fatal("expected error from stuck backend")
	}
}

func TestWriteIgnoreAndContinue(t *testing.T) {
	backend := &stuckBackend{img: []byte{1, 2, 3}}
	o := New(backend, 0x50)
	o.sleep = func(time.Duration) {}
	err := o.Write(0, []byte{9, 2, 3}, WriteIgnoreAndContinue, nil, nil)
	if err != nil {
		t.Fatalf("WriteIgnoreAndContinue should swallow the failure, got %v", err)
	}
}

func TestWriteClearRswpAndRetryRequiresCallback(t *testing.T) {
	backend := &stuckBackend{img: []byte{1}}
	o := New(backend, 0x50)
	o.sleep = func(time.Duration) {}
	err := o.Write(0, []byte{9}, WriteClearRswpAndRetry, nil, nil)
	if err == nil {
		t.Fatal("expected error when clearRswp is nil")
	}
}

func TestReadPermanentFailureReturnsPartialData(t *testing.T) {
	fake := smbus.NewFake(4, map[byte][]byte{0x50: {1, 2, 3, 4}})
	o := New(SMBusBackend{Adapter: fake, Index: 0}, 0x51) // wrong address: NACKs
	o.sleep = func(time.Duration) {}
	data, err := o.Read(0, 2, nil)
	require.Error(t, err, "expected error reading from an absent address")
	require.ErrorIs(t, err, spdcore.ErrNack)
	require.Empty(t, data, "expected no bytes read before the first failure")
}
