package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"zenix/internal/infrastructure/server"
	"zenix/internal/infrastructure/userinteraction"
	"zenix/internal/usecase/panel"
)

var panelCmd = &cobra.Command{
	Use:   "panel",
	Short: "Attach a terminal panel to a running browse session",
	Args:  cobra.NoArgs,
	RunE:  runRemotePanel,
}

func init() {
	panelCmd.Flags().String("session", "ws://localhost:3000", "base URL of the browse session")
	panelCmd.Flags().String("url", "", "page the session currently shows, to restore its conversation")
}

func runRemotePanel(cmd *cobra.Command, args []string) error {
	base, _ := cmd.Flags().GetString("session")
	url, _ := cmd.Flags().GetString("url")
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	bus, err := container.RemotePanelBus(ctx, strings.TrimRight(base, "/")+server.PanelRoute)
	if err != nil {
		return err
	}

	console := userinteraction.NewConsole(os.Stdin, os.Stdout, !color.NoColor)
	ctrl := panel.NewController(console, bus, container.Store, container.Store, container.Logger)
	stop, err := ctrl.Listen()
	if err != nil {
		return fmt.Errorf("panel listen: %w", err)
	}
	defer stop()

	go func() {
		select {
		case <-bus.Done():
			console.ShowError("Browser session closed.")
			cancel()
		case <-ctx.Done():
		}
	}()

	ctrl.Open(ctx, url)
	console.ShowNotice(helpText)
	return runPanel(ctx, ctrl, console)
}
