package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lanshare/internal/session"
)

func createLeaveCommand(appCtx *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "leave",
		Short: "Leave the current session",
		Run: func(cmd *cobra.Command, args []string) {
			wasIdle := appCtx.Manager.Role() == session.RoleIdle

			appCtx.Manager.Shutdown()

			if wasIdle {
				fmt.Println("Not in a session.")
				return
			}
			fmt.Println("Left the session.")
		},
	}
}
