package main

import (
	"fmt"
	"os"

	"github.com/mscrnt/spdtool/internal/history"
	"github.com/mscrnt/spdtool/internal/spd"
	"github.com/spf13/cobra"
)

func decodeCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode an SPD image from a file or the attached programmer",
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw []byte
			var err error
			if file != "" {
				raw, err = os.ReadFile(file) // #nosec G304 -- operator-specified path
				if err != nil {
					return fmt.Errorf("read %s: %w", file, err)
				}
			} else {
				orch, addr, closeFn, err := openOrchestrator()
				if err != nil {
					return err
				}
				defer func() { _ = closeFn() }()
				raw, err = orch.Read(0, spd.RamDDR5.ExpectedSize(), nil)
				if err != nil && len(raw) == 0 {
					return fmt.Errorf("read SPD at 0x%02X: %w", addr, err)
				}
			}

			img, err := spd.Detect(raw)
			if err != nil {
				return fmt.Errorf("decode: %w", err)
			}
			printDecoded(img)
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "decode a local SPD dump instead of reading from the programmer")
	return cmd
}

func printDecoded(img *spd.Image) {
	fmt.Printf("Type:         %s\n", img.Type)
	fmt.Printf("Manufacturer: %s\n", img.Manufacturer())
	fmt.Printf("Part Number:  %s\n", img.PartNumber())
	fmt.Printf("Serial:       %s\n", img.SerialNumberHex())
	year, week := img.ManufacturingDate()
	fmt.Printf("Mfg Date:     year %d, week %d\n", year, week)
	fmt.Printf("Capacity:     %.2f GB\n", img.CapacityGB())
	fmt.Printf("CRC Valid:    %v\n", img.CrcStatus())
	for _, p := range img.Profiles() {
		fmt.Printf("Profile:      %s\n", p.Label)
	}
}

func recordHistoryEvent(h *history.Store, kind history.EventKind, addr byte, detail string) {
	if h == nil {
		return
	}
	_ = h.RecordEvent(&history.Event{Programmer: transportTag(), Address: addr, Kind: kind, Detail: detail})
}
