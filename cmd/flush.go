package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var flushTimeout time.Duration

var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Deliver all pending requests",
	Long:  "Attempt to deliver every queued request to the collector. Requests that cannot be delivered stay queued.",
	Run: func(cmd *cobra.Command, args []string) {
		client, _, err := newClient()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		defer client.Shutdown()

		before := client.QueueLen()
		if before == 0 {
			fmt.Println("Queue is empty")
			return
		}

		left := deliver(client, flushTimeout)
		fmt.Printf("Delivered %d of %d request(s)\n", before-left, before)
		if left > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	flushCmd.Flags().DurationVar(&flushTimeout, "timeout", 30*time.Second, "Delivery timeout")
	rootCmd.AddCommand(flushCmd)
}
