package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimogit/beacon/pkg/beacon"
	"github.com/nimogit/beacon/pkg/errors"
)

var (
	trackFlags struct {
		count    int64
		sum      float64
		segments []string
		timeout  time.Duration
		noSend   bool
	}
)

var trackCmd = &cobra.Command{
	Use:   "track",
	Short: "Record telemetry from the command line",
}

var trackEventCmd = &cobra.Command{
	Use:   "event <key>",
	Short: "Record a single event",
	Long: `Record a single event and deliver it to the collector.

Segmentation is given as repeated key=value pairs:

  beacon track event purchase --sum 9.99 --segment plan=pro --segment region=eu

With --no-send the event is only queued; a later 'beacon flush' (or any
other command) delivers it.`,
	Args: cobra.ExactArgs(1),
	Run:  runTrackEvent,
}

var trackErrorCmd = &cobra.Command{
	Use:   "error <message>",
	Short: "Record a non-fatal error report",
	Args:  cobra.ExactArgs(1),
	Run:   runTrackError,
}

func init() {
	trackEventCmd.Flags().Int64VarP(&trackFlags.count, "count", "c", 1, "Event count")
	trackEventCmd.Flags().Float64VarP(&trackFlags.sum, "sum", "s", 0, "Event sum (e.g. a price)")
	trackEventCmd.Flags().StringArrayVar(&trackFlags.segments, "segment", nil, "Segmentation key=value (repeatable)")
	trackEventCmd.Flags().DurationVar(&trackFlags.timeout, "timeout", 10*time.Second, "Delivery timeout")
	trackEventCmd.Flags().BoolVar(&trackFlags.noSend, "no-send", false, "Queue the event without delivering")

	trackErrorCmd.Flags().DurationVar(&trackFlags.timeout, "timeout", 10*time.Second, "Delivery timeout")

	trackCmd.AddCommand(trackEventCmd)
	trackCmd.AddCommand(trackErrorCmd)
	rootCmd.AddCommand(trackCmd)
}

func runTrackEvent(cmd *cobra.Command, args []string) {
	client, _, err := newClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Shutdown()

	ev := beacon.Event{Key: args[0], Count: trackFlags.count}
	if cmd.Flags().Changed("sum") {
		ev.Sum = beacon.Float64(trackFlags.sum)
	}
	if len(trackFlags.segments) > 0 {
		ev.Segmentation = make(map[string]interface{}, len(trackFlags.segments))
		for _, pair := range trackFlags.segments {
			key, value, ok := strings.Cut(pair, "=")
			if !ok || key == "" {
				fmt.Fprintln(os.Stderr, errors.ValidationError("segment", pair, "expected key=value"))
				os.Exit(1)
			}
			ev.Segmentation[key] = value
		}
	}

	client.RecordEvent(ev)

	if trackFlags.noSend {
		fmt.Printf("Queued event %q\n", args[0])
		return
	}
	reportDelivery(client, trackFlags.timeout)
}

func runTrackError(cmd *cobra.Command, args []string) {
	client, _, err := newClient()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer client.Shutdown()

	client.RecordError(fmt.Errorf("%s", args[0]), false, nil)
	reportDelivery(client, trackFlags.timeout)
}

func reportDelivery(client *beacon.Client, timeout time.Duration) {
	if left := deliver(client, timeout); left > 0 {
		fmt.Printf("Collector unreachable; %d request(s) queued for a later run\n", left)
		return
	}
	fmt.Println("Delivered")
}
