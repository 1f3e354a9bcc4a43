package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/mscrnt/spdtool/internal/agentd"
	"github.com/mscrnt/spdtool/internal/eeprom"
	"github.com/mscrnt/spdtool/internal/history"
	"github.com/mscrnt/spdtool/internal/programmer"
	"github.com/mscrnt/spdtool/internal/smbus"
	"github.com/mscrnt/spdtool/internal/wire"
)

var (
	transportSerial       string
	transportSMBusAdapter int
	transportAddr         string
)

// getStatePath returns the path to spdctl's on-disk state directory:
// SPDCTL_STATE_DIR as given when set, otherwise ~/.spdctl, which is
// created if needed.
func getStatePath() string {
	if p := os.Getenv("SPDCTL_STATE_DIR"); p != "" {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	dir := filepath.Join(homeDir, ".spdctl")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "."
	}
	return dir
}

func getHistoryPath() string {
	return filepath.Join(getStatePath(), "history.db")
}

func openHistoryStore() (*history.Store, error) {
	return history.Open(getHistoryPath())
}

func getDefaultsPath() string {
	return filepath.Join(getStatePath(), "defaults.toml")
}

// loadDefaults reads the persisted operator preferences, returning the
// zero value rather than an error when no defaults file has been saved
// yet.
func loadDefaults() agentd.Defaults {
	path := getDefaultsPath()
	if _, err := os.Stat(path); err != nil {
		return agentd.Defaults{}
	}
	d, err := agentd.LoadDefaults(path)
	if err != nil {
		return agentd.Defaults{}
	}
	return d
}

func parseAddrFlag() (byte, error) {
	s := strings.TrimPrefix(strings.TrimPrefix(transportAddr, "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid --addr %q: %w", transportAddr, err)
	}
	return byte(v), nil
}

// openOrchestrator opens either the serial programmer or the SMBus
// adapter named by the global transport flags and returns an
// Orchestrator bound to --addr, along with a closer to release the
// underlying transport.
func openOrchestrator() (orch *eeprom.Orchestrator, addr byte, closeFn func() error, err error) {
	addr, err = parseAddrFlag()
	if err != nil {
		return nil, 0, nil, err
	}

	// Neither --serial nor --smbus was given: fall back to the
	// persisted operator defaults, if any have been saved.
	if transportSerial == "" && transportSMBusAdapter < 0 {
		defaults := loadDefaults()
		switch {
		case defaults.SerialPort != "":
			transportSerial = defaults.SerialPort
		case defaults.SMBusAdapterIndex != 0:
			transportSMBusAdapter = defaults.SMBusAdapterIndex
		}
	}

	switch {
	case transportSerial != "":
		t, err := wire.OpenSerial(transportSerial, 115200)
		if err != nil {
			return nil, 0, nil, fmt.Errorf("open serial %s: %w", transportSerial, err)
		}
		sess, err := programmer.Open(t, transportSerial, log.Default())
		if err != nil {
			_ = t.Close()
			return nil, 0, nil, fmt.Errorf("open programmer session: %w", err)
		}
		backend := eeprom.SessionBackend{Session: sess}
		return eeprom.New(backend, addr), addr, sess.Close, nil

	case transportSMBusAdapter >= 0:
		adapter := smbus.NewPlatformAdapter()
		backend := eeprom.SMBusBackend{Adapter: adapter, Index: transportSMBusAdapter}
		return eeprom.New(backend, addr), addr, adapter.Close, nil

	default:
		return nil, 0, nil, fmt.Errorf("specify either --serial <port> or --smbus <adapter index>")
	}
}

func transportTag() string {
	if transportSerial != "" {
		return transportSerial
	}
	return fmt.Sprintf("smbus%d", transportSMBusAdapter)
}
