package agentd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Defaults holds the daemon's persisted operator preferences: which
// transport to open by default and which I2C address/adapter to talk
// to when a request omits them.
type Defaults struct {
	SerialPort        string `toml:"serial_port"`
	DefaultAddress    byte   `toml:"default_address"`
	SMBusAdapterIndex int    `toml:"smbus_adapter_index"`
}

// LoadDefaults reads a TOML defaults file. A missing SerialPort or a
// zero DefaultAddress is left for the caller to fill from flags.
func LoadDefaults(path string) (Defaults, error) {
	var d Defaults
	if _, err := toml.DecodeFile(path, &d); err != nil {
		return Defaults{}, fmt.Errorf("agentd: load defaults: %w", err)
	}
	return d, nil
}

// SaveDefaults writes d to path in TOML form.
func SaveDefaults(path string, d Defaults) error {
	f, err := os.Create(path) // #nosec G304 -- operator-specified config path
	if err != nil {
		return fmt.Errorf("agentd: open defaults file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if err := toml.NewEncoder(f).Encode(d); err != nil {
		return fmt.Errorf("agentd: encode defaults: %w", err)
	}
	return nil
}
