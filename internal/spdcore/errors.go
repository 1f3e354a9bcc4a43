// Package spdcore holds the error vocabulary shared by every layer of the
// toolkit: wire transport, programmer client, SMBus backend, orchestrator,
// and decoder. Errors are values, wrapped with fmt.Errorf("%w") at each
// layer boundary, never panics or exceptions.
package spdcore

import "errors"

// Sentinel error kinds. Use errors.Is to test for a kind after it has
// been wrapped by an intermediate layer.
var (
	// ErrBadLength: SPD image size does not match the detected RAM type.
	ErrBadLength = errors.New("spd: bad length")
	// ErrCrc: one or more covered sections fail checksum validation.
	ErrCrc = errors.New("spd: crc validation failed")
	// ErrTimeout: transport did not deliver an expected response in time.
	ErrTimeout = errors.New("spd: timeout")
	// ErrClosed: transport is not open, or was closed mid-operation.
	ErrClosed = errors.New("spd: transport closed")
	// ErrNack: an I2C device returned NACK.
	ErrNack = errors.New("spd: nack")
	// ErrUnsupported: operation not valid for this RAM type or capability.
	ErrUnsupported = errors.New("spd: unsupported")
	// ErrVerifyFailed: post-write read-back did not match the write.
	ErrVerifyFailed = errors.New("spd: verify failed")
	// ErrBadFrame: firmware received a malformed argument frame.
	ErrBadFrame = errors.New("spd: bad frame")
)
