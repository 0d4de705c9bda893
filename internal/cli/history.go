package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func createHistoryCommand(appCtx *AppContext) *cobra.Command {
	var limit int

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent session events",
		RunE: func(cmd *cobra.Command, args []string) error {
			if appCtx.Journal == nil {
				fmt.Println("Journal is disabled, set journal_path in the config to enable it.")
				return nil
			}

			events, err := appCtx.Journal.Recent(limit)
			if err != nil {
				return fmt.Errorf("failed to read journal: %w", err)
			}

			if len(events) == 0 {
				fmt.Println("No recorded events.")
				return nil
			}

			for _, ev := range events {
				var details []string
				if ev.Room != "" {
					details = append(details, "room="+ev.Room)
				}
				if ev.Peer != "" {
					details = append(details, "peer="+ev.Peer)
				}
				if ev.Addr != "" {
					details = append(details, "addr="+ev.Addr)
				}

				fmt.Printf("%s  %s  %s\n",
					ev.Time.Format("2006-01-02 15:04:05"),
					color.CyanString("%-14s", ev.Kind),
					strings.Join(details, " "),
				)
			}
			return nil
		},
	}

	historyCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum events to show")

	return historyCmd
}
