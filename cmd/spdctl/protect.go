package main

import (
	"fmt"
	"log"

	"github.com/mscrnt/spdtool/internal/history"
	"github.com/mscrnt/spdtool/internal/programmer"
	"github.com/mscrnt/spdtool/internal/wire"
	"github.com/spf13/cobra"
)

// openSession opens the serial programmer directly, for operations
// (RSWP, PSWP) that need the firmware's HV control lines and have no
// SMBus equivalent.
func openSession() (*programmer.Session, byte, error) {
	addr, err := parseAddrFlag()
	if err != nil {
		return nil, 0, err
	}
	if transportSerial == "" {
		return nil, 0, fmt.Errorf("rswp/pswp require --serial: no SMBus equivalent exists for firmware write-protect control")
	}
	t, err := wire.OpenSerial(transportSerial, 115200)
	if err != nil {
		return nil, 0, fmt.Errorf("open serial %s: %w", transportSerial, err)
	}
	sess, err := programmer.Open(t, transportSerial, log.Default())
	if err != nil {
		_ = t.Close()
		return nil, 0, fmt.Errorf("open programmer session: %w", err)
	}
	return sess, addr, nil
}

func rswpCmd() *cobra.Command {
	var block int
	var stateFlag string

	cmd := &cobra.Command{
		Use:   "rswp",
		Short: "Enable, disable, or query reversible write protection on a DDR4 block (or the legacy block for older types)",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := parseRswpStateFlag(stateFlag)
			if err != nil {
				return err
			}
			sess, _, err := openSession()
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			got, err := sess.RSWP(block, state)
			if err != nil {
				return fmt.Errorf("rswp: %w", err)
			}

			h, _ := openHistoryStore()
			if h != nil {
				defer func() { _ = h.Close() }()
			}
			recordHistoryEvent(h, history.EventRswp, 0, fmt.Sprintf("rswp block %d -> %s", block, stateFlag))
			fmt.Printf("block %d: %s\n", block, rswpStateName(got))
			return nil
		},
	}
	cmd.Flags().IntVar(&block, "block", 0, "RSWP block (0-3 for DDR4; ignored for pre-DDR4 legacy block)")
	cmd.Flags().StringVar(&stateFlag, "state", "query", "enable, disable, or query")
	return cmd
}

func pswpCmd() *cobra.Command {
	var stateFlag string

	cmd := &cobra.Command{
		Use:   "pswp",
		Short: "Enable or query permanent write protection (irreversible)",
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := parseRswpStateFlag(stateFlag)
			if err != nil {
				return err
			}
			if state == programmer.RswpDisable {
				return fmt.Errorf("pswp cannot be disabled once set")
			}
			sess, addr, err := openSession()
			if err != nil {
				return err
			}
			defer func() { _ = sess.Close() }()

			got, err := sess.PSWP(addr, state)
			if err != nil {
				return fmt.Errorf("pswp: %w", err)
			}

			h, _ := openHistoryStore()
			if h != nil {
				defer func() { _ = h.Close() }()
			}
			recordHistoryEvent(h, history.EventPswp, addr, fmt.Sprintf("pswp -> %s", stateFlag))
			fmt.Printf("0x%02X: %s\n", addr, rswpStateName(got))
			return nil
		},
	}
	cmd.Flags().StringVar(&stateFlag, "state", "query", "enable or query (pswp has no disable)")
	return cmd
}

func parseRswpStateFlag(s string) (programmer.RswpState, error) {
	switch s {
	case "enable":
		return programmer.RswpEnable, nil
	case "disable":
		return programmer.RswpDisable, nil
	case "query":
		return programmer.RswpQuery, nil
	default:
		return 0, fmt.Errorf("invalid --state %q: want enable, disable, or query", s)
	}
}

func rswpStateName(s programmer.RswpState) string {
	switch s {
	case programmer.RswpEnable:
		return "enabled"
	case programmer.RswpDisable:
		return "disabled"
	default:
		return "unknown"
	}
}
