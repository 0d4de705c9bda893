package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"lanshare/internal/session"
)

func createHostCommand(appCtx *AppContext) *cobra.Command {
	var roomName string

	hostCmd := &cobra.Command{
		Use:   "host",
		Short: "Host a room on this machine",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Manager.StartHost(cmd.Context(), roomName); err != nil {
				return fmt.Errorf("failed to host room: %w", err)
			}

			room, _ := appCtx.Manager.Room()
			fmt.Printf("Hosting %s at %s\n",
				color.CyanString(room.Name),
				color.GreenString("%s:%d", room.IP, room.Port),
			)

			if !appCtx.Interactive {
				fmt.Println("Waiting for peers, Ctrl-C to stop.")
				streamSession(cmd.Context(), appCtx)
			}
			return nil
		},
	}

	hostCmd.Flags().StringVarP(&roomName, "room", "r", "", "room name to announce")
	hostCmd.MarkFlagRequired("room")

	return hostCmd
}

// streamSession prints membership changes until the session or the
// process ends. One-shot mode only; the shell has its own printer.
func streamSession(ctx context.Context, appCtx *AppContext) {
	sub := appCtx.Manager.Subscribe()
	defer sub.Cancel()

	printPeers(appCtx.Manager.Peers())

	for {
		select {
		case <-ctx.Done():
			appCtx.Manager.Shutdown()
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			switch ev.Kind {
			case session.EventPeers:
				printPeers(ev.Peers)
			case session.EventSessionEnded:
				fmt.Println(color.RedString("session ended by the host"))
				return
			}
		}
	}
}
