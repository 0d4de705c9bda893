package cli

import (
	"github.com/spf13/cobra"
)

func createPeersCommand(appCtx *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "peers",
		Short: "Show the current session membership",
		Run: func(cmd *cobra.Command, args []string) {
			printPeers(appCtx.Manager.Peers())
		},
	}
}
