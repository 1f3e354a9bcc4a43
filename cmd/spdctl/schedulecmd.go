package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/mscrnt/spdtool/internal/eeprom"
	"github.com/mscrnt/spdtool/internal/history"
	"github.com/mscrnt/spdtool/internal/programmer"
	"github.com/mscrnt/spdtool/internal/schedule"
	"github.com/mscrnt/spdtool/internal/wire"
	"github.com/spf13/cobra"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage periodic CRC re-verification jobs",
		Long:  "Run a cron-scheduled background rescan that re-reads a cached module and flags a CRC regression.",
	}
	cmd.AddCommand(scheduleAddCmd())
	cmd.AddCommand(scheduleListCmd())
	cmd.AddCommand(scheduleEnableCmd())
	cmd.AddCommand(scheduleDisableCmd())
	cmd.AddCommand(scheduleDeleteCmd())
	cmd.AddCommand(scheduleRunCmd())
	cmd.AddCommand(scheduleTriggerCmd())
	return cmd
}

// scheduleTriggerCmd runs one job immediately, bypassing its cron
// schedule, useful for testing a newly created job without waiting for
// its next tick.
func scheduleTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <job-id>",
		Short: "Run a rescan job immediately against the local programmer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q: %w", args[0], err)
			}
			if transportSerial == "" {
				return fmt.Errorf("schedule trigger requires --serial: jobs rescan through one held session")
			}
			t, err := wire.OpenSerial(transportSerial, 115200)
			if err != nil {
				return fmt.Errorf("open serial %s: %w", transportSerial, err)
			}
			sess, err := programmer.Open(t, transportSerial, log.Default())
			if err != nil {
				return fmt.Errorf("open programmer session: %w", err)
			}
			defer func() { _ = sess.Close() }()

			h, store, err := openScheduleStore()
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			runner := schedule.NewRunner(store, h, log.Default())
			job, err := store.Get(id)
			if err != nil {
				return fmt.Errorf("get job: %w", err)
			}
			addr, err := parseAddrFlag()
			if err != nil {
				return err
			}
			runner.RegisterRescanner(job.Programmer, eeprom.New(eeprom.SessionBackend{Session: sess}, addr))
			if err := runner.RunNow(id); err != nil {
				return fmt.Errorf("run job: %w", err)
			}
			fmt.Println("job run complete")
			return nil
		},
	}
}

func openScheduleStore() (*history.Store, *schedule.Store, error) {
	h, err := openHistoryStore()
	if err != nil {
		return nil, nil, fmt.Errorf("open history store: %w", err)
	}
	s, err := schedule.NewStore(h)
	if err != nil {
		_ = h.Close()
		return nil, nil, fmt.Errorf("open schedule store: %w", err)
	}
	return h, s, nil
}

func scheduleAddCmd() *cobra.Command {
	var name, cronExpr string
	var length int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a periodic rescan job",
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddrFlag()
			if err != nil {
				return err
			}
			h, store, err := openScheduleStore()
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			job := &schedule.Job{
				Name:       name,
				CronExpr:   cronExpr,
				Programmer: transportTag(),
				Address:    addr,
				Length:     length,
				Enabled:    true,
			}
			if err := store.Create(job); err != nil {
				return fmt.Errorf("create job: %w", err)
			}
			fmt.Printf("created job %d (%s)\n", job.ID, job.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "unique job name (required)")
	cmd.Flags().StringVar(&cronExpr, "cron", "0 * * * *", "cron expression for the rescan schedule")
	cmd.Flags().IntVar(&length, "length", 512, "bytes to re-read on each run")
	return cmd
}

func scheduleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List rescan jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, store, err := openScheduleStore()
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			jobs, err := store.List(schedule.JobFilter{})
			if err != nil {
				return fmt.Errorf("list jobs: %w", err)
			}
			for _, j := range jobs {
				next := "n/a"
				if j.NextRunTime != nil {
					next = j.NextRunTime.Format(time.RFC3339)
				}
				fmt.Printf("%d\t%s\t%s\t%s@0x%02X\tenabled=%v\tnext=%s\n",
					j.ID, j.Name, j.CronExpr, j.Programmer, j.Address, j.Enabled, next)
			}
			return nil
		},
	}
}

func scheduleEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <job-id>",
		Short: "Enable a rescan job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobID(args[0], func(store *schedule.Store, id int64) error {
				return store.Enable(id)
			})
		},
	}
}

func scheduleDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <job-id>",
		Short: "Disable a rescan job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobID(args[0], func(store *schedule.Store, id int64) error {
				return store.Disable(id)
			})
		},
	}
}

func scheduleDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a rescan job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJobID(args[0], func(store *schedule.Store, id int64) error {
				return store.Delete(id)
			})
		},
	}
}

func withJobID(raw string, fn func(*schedule.Store, int64) error) error {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", raw, err)
	}
	h, store, err := openScheduleStore()
	if err != nil {
		return err
	}
	defer func() { _ = h.Close() }()
	return fn(store, id)
}

// scheduleRunCmd runs the daemon loop in the foreground: it registers
// the serial programmer named by --serial as the rescanner for every
// job whose Programmer field matches it, then blocks until interrupted.
func scheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the schedule daemon against the local programmer until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if transportSerial == "" {
				return fmt.Errorf("schedule run requires --serial: jobs rescan through one held session")
			}
			t, err := wire.OpenSerial(transportSerial, 115200)
			if err != nil {
				return fmt.Errorf("open serial %s: %w", transportSerial, err)
			}
			sess, err := programmer.Open(t, transportSerial, log.Default())
			if err != nil {
				return fmt.Errorf("open programmer session: %w", err)
			}
			defer func() { _ = sess.Close() }()

			h, store, err := openScheduleStore()
			if err != nil {
				return err
			}
			defer func() { _ = h.Close() }()

			runner := schedule.NewRunner(store, h, log.Default())
			addr, err := parseAddrFlag()
			if err != nil {
				return err
			}
			runner.RegisterRescanner(transportSerial, eeprom.New(eeprom.SessionBackend{Session: sess}, addr))

			if err := runner.Start(); err != nil {
				return fmt.Errorf("start runner: %w", err)
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			fmt.Println("schedule daemon running, press Ctrl+C to stop...")
			<-sigChan
			runner.Stop()
			return nil
		},
	}
}
