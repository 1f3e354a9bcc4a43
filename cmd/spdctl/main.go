package main

import (
	"fmt"
	"os"

	"github.com/mscrnt/spdtool/internal/version"
	"github.com/spf13/cobra"
)

var (
	buildVersion string
	buildCommit  string
	buildTime    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spdctl",
		Short: "spdctl - SPD EEPROM decoder and programmer control",
		Long: `spdctl talks to an SPD programmer over serial or SMBus and decodes,
reads, writes, and write-protects SPD EEPROM images across SDRAM
through DDR5.`,
		Version: version.GetVersion(buildVersion, buildCommit, buildTime),
	}

	rootCmd.PersistentFlags().StringVar(&transportSerial, "serial", "", "serial port of the attached programmer (e.g. /dev/ttyUSB0)")
	rootCmd.PersistentFlags().IntVar(&transportSMBusAdapter, "smbus", -1, "SMBus adapter index to use instead of a serial programmer")
	rootCmd.PersistentFlags().StringVar(&transportAddr, "addr", "0x50", "EEPROM I2C address, hex (0x50-0x57)")

	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(decodeCmd())
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(writeCmd())
	rootCmd.AddCommand(fixCrcCmd())
	rootCmd.AddCommand(rswpCmd())
	rootCmd.AddCommand(pswpCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(scheduleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.GetDetailedVersion(buildVersion, buildCommit, buildTime))
		},
	}
}
