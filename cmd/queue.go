package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/nimogit/beacon/internal/common"
	"github.com/nimogit/beacon/internal/request"
	"github.com/nimogit/beacon/internal/storage"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the pending request queue",
	Long: `Show the requests persisted locally and awaiting delivery.

The queue survives restarts; anything listed here goes out on the next
command run (or 'beacon flush').`,
	Run: runQueue,
}

func init() {
	rootCmd.AddCommand(queueCmd)
}

func runQueue(cmd *cobra.Command, args []string) {
	pending, err := loadQueue()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if len(pending) == 0 {
		fmt.Println("Queue is empty")
		return
	}

	useColor := isatty.IsTerminal(os.Stdout.Fd())
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Kind", "Queued At", "Device", "Detail"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)

	for i, r := range pending {
		kind := r.Kind()
		if useColor {
			switch kind {
			case "crash":
				kind = color.RedString(kind)
			case "begin_session", "end_session", "session_duration":
				kind = color.CyanString(kind)
			default:
				kind = color.GreenString(kind)
			}
		}
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			kind,
			time.Unix(r.Timestamp, 0).Format(time.RFC3339),
			r.DeviceID,
			requestDetail(r),
		})
	}
	table.Render()

	fmt.Printf("\n%d request(s) pending\n", len(pending))
}

func loadQueue() ([]*request.Request, error) {
	dir, err := common.StateDir()
	if err != nil {
		return nil, err
	}

	store, err := storage.Open(filepath.Join(dir, "beacon.json"))
	if err != nil {
		return nil, err
	}
	defer store.Close()

	var pending []*request.Request
	store.Get(storage.KeyQueue, &pending)
	return pending, nil
}

func requestDetail(r *request.Request) string {
	switch r.Kind() {
	case "events":
		return fmt.Sprintf("%d event(s)", len(r.Events))
	case "session_duration", "end_session":
		if r.SessionDuration != nil {
			return fmt.Sprintf("%ds", *r.SessionDuration)
		}
	case "campaign":
		return r.CampaignID
	case "device_merge":
		return "from " + r.OldDeviceID
	}
	return ""
}
