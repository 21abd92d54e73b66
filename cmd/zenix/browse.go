package main

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"zenix/internal/di"
	"zenix/internal/infrastructure/messaging"
	"zenix/internal/infrastructure/server"
)

var browseCmd = &cobra.Command{
	Use:   "browse [url]",
	Short: "Open a browser and wait for a remote panel",
	Long: `Launches a browser with the background and page script, and serves the
proxy together with a websocket at /ws/panel that "zenix panel" attaches to.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBrowse,
}

func init() {
	browseCmd.Flags().String("addr", "", "listen address for the proxy and the panel socket")
	browseCmd.Flags().Bool("local", true, "call the model in process instead of through another proxy")
	addSessionFlags(browseCmd)
}

func runBrowse(cmd *cobra.Command, args []string) error {
	local, _ := cmd.Flags().GetBool("local")
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	session, err := openSession(ctx, args, di.SessionOptions{Local: local})
	if err != nil {
		return err
	}
	defer session.Close()

	bridge := messaging.NewPanelBridge(session.Hub, container.Logger.WithField("component", "panel_bridge"))
	srv := container.Server(server.WithPanelBridge(bridge))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		return srv.Run(gctx)
	})
	return g.Wait()
}
