package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/mscrnt/spdtool/internal/eeprom"
	"github.com/mscrnt/spdtool/internal/history"
	"github.com/mscrnt/spdtool/internal/spd"
	"github.com/spf13/cobra"
)

func readCmd() *cobra.Command {
	var offset uint16
	var length int
	var outFile string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read raw bytes from the attached SPD EEPROM",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, addr, closeFn, err := openOrchestrator()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			data, err := orch.Read(offset, length, progressPrinter())
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}

			h, _ := openHistoryStore()
			if h != nil {
				defer func() { _ = h.Close() }()
			}
			recordHistoryEvent(h, history.EventRead, addr, fmt.Sprintf("read %d bytes at offset %d", length, offset))

			if outFile != "" {
				return os.WriteFile(outFile, data, 0o644) // #nosec G306 -- operator-specified dump path
			}
			fmt.Println(hex.EncodeToString(data))
			return nil
		},
	}
	cmd.Flags().Uint16Var(&offset, "offset", 0, "byte offset to start reading at")
	cmd.Flags().IntVar(&length, "length", 512, "number of bytes to read")
	cmd.Flags().StringVar(&outFile, "out", "", "write the raw bytes to this file instead of printing hex")
	return cmd
}

func writeCmd() *cobra.Command {
	var offset uint16
	var value string
	var onFailureFlag string

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write a single byte to the attached SPD EEPROM",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseUint(trimHex(value), 16, 8)
			if err != nil {
				return fmt.Errorf("invalid --value %q: %w", value, err)
			}
			orch, addr, closeFn, err := openOrchestrator()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			onFailure, err := parseOnFailure(onFailureFlag)
			if err != nil {
				return err
			}
			if err := orch.Write(offset, []byte{byte(v)}, onFailure, nil, nil); err != nil {
				return fmt.Errorf("write: %w", err)
			}

			h, _ := openHistoryStore()
			if h != nil {
				defer func() { _ = h.Close() }()
			}
			recordHistoryEvent(h, history.EventWrite, addr, fmt.Sprintf("wrote 0x%02X at offset %d", v, offset))
			fmt.Println("write ok")
			return nil
		},
	}
	cmd.Flags().Uint16Var(&offset, "offset", 0, "byte offset to write")
	cmd.Flags().StringVar(&value, "value", "", "byte value to write, hex (required)")
	cmd.Flags().StringVar(&onFailureFlag, "on-failure", "abort", "what to do if verify fails: abort, clear-rswp, ignore")
	return cmd
}

func fixCrcCmd() *cobra.Command {
	var length int
	cmd := &cobra.Command{
		Use:   "fix-crc",
		Short: "Read an SPD image, recompute its CRC, and write the corrected bytes back",
		RunE: func(cmd *cobra.Command, args []string) error {
			orch, addr, closeFn, err := openOrchestrator()
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			raw, err := orch.Read(0, length, progressPrinter())
			if err != nil {
				return fmt.Errorf("read: %w", err)
			}
			img, err := spd.Detect(raw)
			if err != nil {
				return fmt.Errorf("decode before fix-crc: %w", err)
			}
			if img.CrcStatus() {
				fmt.Println("CRC already valid, nothing to fix")
				return nil
			}
			img.FixCrc()
			if err := orch.ForceWrite(0, img.Bytes, eeprom.WriteAbort, nil, progressPrinter()); err != nil {
				return fmt.Errorf("write corrected image: %w", err)
			}

			h, _ := openHistoryStore()
			if h != nil {
				defer func() { _ = h.Close() }()
			}
			recordHistoryEvent(h, history.EventFixCrc, addr, "recomputed and wrote CRC")
			fmt.Println("CRC fixed")
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", 512, "image size to read before recomputing CRC")
	return cmd
}

func progressPrinter() eeprom.ProgressFunc {
	return func(p eeprom.Progress) {
		fmt.Printf("\r%d/%d bytes", p.Done, p.Total)
		if p.Done == p.Total {
			fmt.Println()
		}
	}
}

func trimHex(s string) string {
	if len(s) > 1 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func parseOnFailure(s string) (eeprom.WriteOnFailure, error) {
	switch s {
	case "abort":
		return eeprom.WriteAbort, nil
	case "clear-rswp":
		return eeprom.WriteClearRswpAndRetry, nil
	case "ignore":
		return eeprom.WriteIgnoreAndContinue, nil
	default:
		return 0, fmt.Errorf("invalid --on-failure %q: want abort, clear-rswp, or ignore", s)
	}
}
