package main

import (
	"fmt"

	"github.com/mscrnt/spdtool/internal/programmer"
	"github.com/mscrnt/spdtool/internal/smbus"
	"github.com/mscrnt/spdtool/internal/wire"
	"github.com/spf13/cobra"
)

func scanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan",
		Short: "Scan the I2C bus for SPD EEPROMs at 0x50-0x57",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mask byte
			var err error

			switch {
			case transportSerial != "":
				t, openErr := wire.OpenSerial(transportSerial, 115200)
				if openErr != nil {
					return fmt.Errorf("open serial %s: %w", transportSerial, openErr)
				}
				defer func() { _ = t.Close() }()
				sess, sessErr := programmer.Open(t, transportSerial, nil)
				if sessErr != nil {
					return fmt.Errorf("open programmer session: %w", sessErr)
				}
				defer func() { _ = sess.Close() }()
				mask, err = sess.ScanBus()

			case transportSMBusAdapter >= 0:
				adapter := smbus.NewPlatformAdapter()
				defer func() { _ = adapter.Close() }()
				mask, err = adapter.ScanBus(transportSMBusAdapter)

			default:
				return fmt.Errorf("specify either --serial <port> or --smbus <adapter index>")
			}
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}

			found := false
			for i := 0; i < 8; i++ {
				if mask&(1<<uint(i)) != 0 {
					fmt.Printf("0x%02X\n", 0x50+i)
					found = true
				}
			}
			if !found {
				fmt.Println("no devices found")
			}
			return nil
		},
	}
}
