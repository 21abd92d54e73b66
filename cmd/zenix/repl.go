package main

import (
	"context"
	"errors"
	"io"
	"strings"

	"zenix/internal/infrastructure/userinteraction"
	"zenix/internal/usecase/panel"
)

const helpText = `Commands:
  /select      pick an element on the page to ask about
  /clear       go back to asking about the whole page
  /new         start a new chat for this page
  /key <key>   store your Google AI API key
  /quit        leave`

type command struct {
	name string
	arg  string
}

// parseCommand splits "/name arg". Plain questions return ok == false.
func parseCommand(line string) (command, bool) {
	if !strings.HasPrefix(line, "/") {
		return command{}, false
	}
	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	return command{name: strings.ToLower(name), arg: strings.TrimSpace(arg)}, true
}

// runPanel reads questions and commands from the console until the input
// ends, /quit is entered or ctx is done.
func runPanel(ctx context.Context, ctrl *panel.Controller, console *userinteraction.Console) error {
	console.SetInputEnabled(true)
	for {
		line, err := console.ReadLine(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			console.SetInputEnabled(true)
			continue
		}

		cmd, isCommand := parseCommand(line)
		if !isCommand {
			if err := ctrl.Send(ctx, line); errors.Is(err, panel.ErrStreamInProgress) {
				console.ShowNotice("Please wait for the current answer to finish.")
			}
			if !ctrl.Streaming() {
				console.SetInputEnabled(true)
			}
			continue
		}

		switch cmd.name {
		case "quit", "exit", "q":
			return nil
		case "select":
			_ = ctrl.StartSelection(ctx)
		case "clear":
			_ = ctrl.ClearSelection(ctx)
		case "new":
			_ = ctrl.NewChat(ctx)
		case "key":
			_ = ctrl.SaveSettings(ctx, cmd.arg)
		case "help":
			console.ShowNotice(helpText)
		default:
			console.ShowError("Unknown command /" + cmd.name + ". Type /help for the list.")
		}
		if !ctrl.Streaming() {
			console.SetInputEnabled(true)
		}
	}
}
