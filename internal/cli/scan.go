package cli

import (
	"fmt"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lanshare/internal/wire"
)

func createScanCommand(appCtx *AppContext) *cobra.Command {
	var scanFor time.Duration

	scanCmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan the local network for hosted rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			var mu sync.Mutex
			seen := make(map[string]struct{})

			err := appCtx.Manager.StartScan(cmd.Context(), func(r wire.Room) {
				mu.Lock()
				defer mu.Unlock()

				key := fmt.Sprintf("%s:%d", r.IP, r.Port)
				if _, ok := seen[key]; ok {
					return
				}
				seen[key] = struct{}{}

				fmt.Printf("%s %s hosted by %s at %s:%d\n",
					color.GreenString("found"),
					color.CyanString(r.Name),
					r.Host, r.IP, r.Port,
				)
			})
			if err != nil {
				return fmt.Errorf("failed to start scan: %w", err)
			}

			select {
			case <-cmd.Context().Done():
			case <-time.After(scanFor):
			}

			appCtx.Manager.StopScan()

			rooms := appCtx.Manager.Rooms()
			if len(rooms) == 0 {
				fmt.Println("No rooms found.")
				return nil
			}

			fmt.Printf("%d room(s) found, join with: join --ip IP --port PORT\n", len(rooms))
			return nil
		},
	}

	scanCmd.Flags().DurationVar(&scanFor, "for", 10*time.Second, "how long to listen for announcements")

	return scanCmd
}
