package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	sessionFlags struct {
		duration time.Duration
		timeout  time.Duration
	}
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Record sessions",
}

// A CLI process is too short-lived for heartbeat-extended sessions, so the
// command records a complete session with an explicit duration.
var sessionRecordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a complete session",
	Long: `Record a complete session of the given duration.

The command queues a begin_session request carrying the device metrics and
an end_session request with the duration, then delivers both:

  beacon session record --duration 5m`,
	Run: runSessionRecord,
}

func init() {
	sessionRecordCmd.Flags().DurationVarP(&sessionFlags.duration, "duration", "d", time.Minute, "Session length")
	sessionRecordCmd.Flags().DurationVar(&sessionFlags.timeout, "timeout", 10*time.Second, "Delivery timeout")

	sessionCmd.AddCommand(sessionRecordCmd)
	rootCmd.AddCommand(sessionCmd)
}

func runSessionRecord(cmd *cobra.Command, args []string) {
	client, _, err := newClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Shutdown()

	client.BeginSession()
	client.EndSessionDuration(int64(sessionFlags.duration.Seconds()))

	reportDelivery(client, sessionFlags.timeout)
}
