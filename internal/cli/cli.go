package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"lanshare/internal/session"
	"lanshare/internal/wire"
)

var rootCmd = &cobra.Command{
	Use:   "lanshare",
	Short: "LAN session sharing",
	Long:  `Host a room on the local network, scan for rooms announced by others, and join them.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// AttachCommand adds a command to the root command.
func AttachCommand(cmd *cobra.Command) {
	rootCmd.AddCommand(cmd)
}

// CliStart dispatches the given args as a one-shot command, or drops
// into the interactive shell when no command was given on a terminal.
func CliStart(ctx context.Context, args []string, appCtx *AppContext) {
	AttachCommand(createHostCommand(appCtx))
	AttachCommand(createScanCommand(appCtx))
	AttachCommand(createJoinCommand(appCtx))
	AttachCommand(createPeersCommand(appCtx))
	AttachCommand(createLeaveCommand(appCtx))
	AttachCommand(createHistoryCommand(appCtx))

	if len(args) > 0 {
		rootCmd.SetArgs(args)
		if err := rootCmd.ExecuteContext(ctx); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		return
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Println("no command given and stdin is not a terminal")
		rootCmd.Help()
		os.Exit(1)
	}

	appCtx.Interactive = true
	runShell(ctx, appCtx)
}

// runShell reads lines from stdin and dispatches each through the
// cobra root. Membership changes are printed by a background event
// printer as they arrive.
func runShell(ctx context.Context, appCtx *AppContext) {
	fmt.Println("Interactive session shell. Commands: host, scan, join, peers, leave, history, exit.")

	go printEvents(ctx, appCtx)

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "":
			fmt.Print("> ")
			continue
		case "exit", "quit":
			appCtx.Manager.Shutdown()
			return
		}

		rootCmd.SetArgs(strings.Fields(line))
		if err := rootCmd.ExecuteContext(ctx); err != nil {
			fmt.Println(err)
		}

		fmt.Print("> ")
	}

	// EOF (Ctrl-D) ends the shell like an explicit leave.
	fmt.Println()
	appCtx.Manager.Shutdown()
}

// printEvents streams manager events to the terminal. An explicit
// leave closes the subscription; re-subscribing keeps the printer
// alive for the next session.
func printEvents(ctx context.Context, appCtx *AppContext) {
	for ctx.Err() == nil {
		sub := appCtx.Manager.Subscribe()
		drainSubscription(ctx, sub)
	}
}

func drainSubscription(ctx context.Context, sub *session.Subscription) {
	for {
		select {
		case <-ctx.Done():
			sub.Cancel()
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			printEvent(ev)
		}
	}
}

func printEvent(ev session.Event) {
	switch ev.Kind {
	case session.EventPeers:
		fmt.Println()
		printPeers(ev.Peers)
		fmt.Print("> ")
	case session.EventSessionEnded:
		fmt.Println()
		fmt.Println(color.RedString("session ended by the host"))
		fmt.Print("> ")
	}
}

func printPeers(peers []wire.Peer) {
	if len(peers) == 0 {
		fmt.Println("Not in a session.")
		return
	}

	fmt.Printf("Peers (%d):\n", len(peers))
	for _, p := range peers {
		status := p.Status
		if status == wire.StatusHost {
			status = color.GreenString(status)
		}
		fmt.Printf("  %s  %s  %s\n", color.CyanString(p.Name), p.IP, status)
	}
}
