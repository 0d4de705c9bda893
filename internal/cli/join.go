package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func createJoinCommand(appCtx *AppContext) *cobra.Command {
	var (
		hostIP   string
		hostPort int
	)

	joinCmd := &cobra.Command{
		Use:   "join",
		Short: "Join a room by address",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !appCtx.Manager.ConnectToRoom(cmd.Context(), hostIP, hostPort) {
				return fmt.Errorf("could not join room at %s:%d", hostIP, hostPort)
			}

			fmt.Printf("Joined room at %s\n", color.GreenString("%s:%d", hostIP, hostPort))

			if !appCtx.Interactive {
				fmt.Println("Watching the session, Ctrl-C to leave.")
				streamSession(cmd.Context(), appCtx)
			}
			return nil
		},
	}

	joinCmd.Flags().StringVarP(&hostIP, "ip", "i", "", "host address")
	joinCmd.Flags().IntVarP(&hostPort, "port", "p", 0, "host rendezvous port")
	joinCmd.MarkFlagRequired("ip")
	joinCmd.MarkFlagRequired("port")

	return joinCmd
}
