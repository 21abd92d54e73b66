package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"zenix/internal/di"
	"zenix/internal/infrastructure/userinteraction"
	"zenix/internal/usecase/panel"
)

var askCmd = &cobra.Command{
	Use:   "ask [url]",
	Short: "Open a browser and chat about its pages in this terminal",
	Long: `Launches a browser, optionally opens url, and runs the background,
the page script and a terminal panel in this process.

Answers come from the proxy server (see --server) unless --local is set,
in which case the model is called directly.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().Bool("local", false, "call the model in process instead of through the proxy")
	addSessionFlags(askCmd)
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "", "proxy server URL")
	cmd.Flags().Bool("headless", false, "run the browser without a window")
	cmd.Flags().Bool("text", false, "send the page's main text instead of its HTML")
}

func runAsk(cmd *cobra.Command, args []string) error {
	local, _ := cmd.Flags().GetBool("local")
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	session, err := openSession(ctx, args, di.SessionOptions{Local: local})
	if err != nil {
		return err
	}
	defer session.Close()

	console := userinteraction.NewConsole(os.Stdin, os.Stdout, !color.NoColor)
	ctrl := panel.NewController(console, session.Hub, container.Store, container.Store, container.Logger)
	stopPanel, err := ctrl.Listen()
	if err != nil {
		return fmt.Errorf("panel listen: %w", err)
	}
	defer stopPanel()

	tab, err := session.Browser.ActiveTab(ctx)
	if err != nil {
		return err
	}
	ctrl.Open(ctx, tab.URL)
	console.ShowNotice(helpText)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return session.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return runPanel(gctx, ctrl, console)
	})
	return g.Wait()
}

func openSession(ctx context.Context, args []string, opts di.SessionOptions) (*di.Session, error) {
	session, err := container.NewSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		if err := session.Browser.Navigate(ctx, args[0]); err != nil {
			session.Close()
			return nil, err
		}
	}
	return session, nil
}
