package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimogit/beacon/internal/config"
	"github.com/nimogit/beacon/internal/dispatch"
	"github.com/nimogit/beacon/internal/log"
	"github.com/nimogit/beacon/internal/security"
	"github.com/nimogit/beacon/pkg/beacon"
	"github.com/nimogit/beacon/pkg/errors"
)

var (
	logLevel string

	rootCmd = &cobra.Command{
		Use:   "beacon",
		Short: "Send telemetry to a collector",
		Long:  "Beacon - a command line client for recording events, sessions and crashes against a telemetry collector, with a durable local queue.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				log.SetLevel(logLevel)
			}
		},
	}
)

func Execute() {
	err := errors.CapturePanics(func(r errors.PanicReport) {
		log.Errorf("panic in command: %s\n%s", r.Value, r.Stack)
	}, rootCmd.Execute)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log verbosity (debug, info, warn, error)")
}

// newClient builds an SDK client from the saved configuration. The heartbeat
// is disabled; CLI commands are short-lived and drive delivery explicitly.
func newClient() (*beacon.Client, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.LogLevel != "" && logLevel == "" {
		log.SetLevel(cfg.LogLevel)
	}

	appKey := cfg.AppKey
	if appKey == "" && cfg.UseKeyring {
		creds, err := security.NewCredentialStore()
		if err != nil {
			return nil, nil, err
		}
		appKey, err = creds.LoadAppKey()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load app key: %w (run 'beacon init')", err)
		}
	}
	if cfg.ServerURL == "" || appKey == "" {
		return nil, nil, fmt.Errorf("beacon is not configured; run 'beacon init' first")
	}

	client, err := beacon.New(beacon.Config{
		ServerURL:        cfg.ServerURL,
		AppKey:           appKey,
		DeviceID:         cfg.DeviceID,
		AppVersion:       cfg.AppVersion,
		Salt:             cfg.Salt,
		CountryCode:      cfg.CountryCode,
		City:             cfg.City,
		IPAddress:        cfg.IPAddress,
		FailTimeout:      cfg.FailTimeout,
		RequestTimeout:   cfg.RequestTimeout,
		DisableHeartbeat: true,
	})
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// deliver drives the client's scheduler until the queue drains or the
// timeout passes. Whatever is still queued stays on disk for the next run.
func deliver(client *beacon.Client, timeout time.Duration) int {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		client.Tick()
		state := client.DispatchState()
		if client.QueueLen() == 0 && state == dispatch.StateIdle {
			break
		}
		if state == dispatch.StateBackoff {
			// The collector rejected a delivery; the retry deadline is
			// minutes away, past any CLI timeout.
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	return client.QueueLen()
}
