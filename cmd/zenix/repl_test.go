package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
	"zenix/internal/infrastructure/logger"
	"zenix/internal/infrastructure/storage/memory"
	"zenix/internal/infrastructure/userinteraction"
	"zenix/internal/testutil"
	"zenix/internal/usecase/panel"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line    string
		want    command
		command bool
	}{
		{"/select", command{name: "select"}, true},
		{"/KEY  abc123 ", command{name: "key", arg: "abc123"}, true},
		{"/quit", command{name: "quit"}, true},
		{"What does this page sell?", command{}, false},
		{"price / month?", command{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := parseCommand(tt.line)
			assert.Equal(t, tt.command, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

type replFixture struct {
	bus   *testutil.RecordingBus
	store *memory.Store
	out   *bytes.Buffer
}

func runScript(t *testing.T, script string, key string) replFixture {
	t.Helper()
	f := replFixture{bus: testutil.NewRecordingBus(), store: memory.NewStore(), out: &bytes.Buffer{}}
	ctx := context.Background()
	if key != "" {
		require.NoError(t, f.store.SetAPIKey(ctx, key))
	}

	console := userinteraction.NewConsole(strings.NewReader(script), f.out, false)
	ctrl := panel.NewController(console, f.bus, f.store, f.store, logger.NewNop())
	ctrl.Open(ctx, "https://example.com/pricing")

	require.NoError(t, runPanel(ctx, ctrl, console))
	return f
}

func TestRunPanel_Commands(t *testing.T) {
	f := runScript(t, "/key abc123\n/select\n/clear\n/bogus\n/quit\n/select\n", "")

	key, err := f.store.APIKey(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc123", key)

	assert.Equal(t, []entity.Action{
		entity.StartElementSelection().Action,
		entity.ClearSelectedElement().Action,
	}, f.bus.Actions(output.EndpointBackground), "input after /quit is not read")
	assert.Contains(t, f.out.String(), panel.MsgSettingsSaved)
	assert.Contains(t, f.out.String(), "Unknown command /bogus")
}

func TestRunPanel_QuestionWithoutKey(t *testing.T) {
	f := runScript(t, "What plans exist?\n", "")

	assert.Empty(t, f.bus.Sent())
	assert.Contains(t, f.out.String(), panel.MsgConfigureKey)
}

func TestRunPanel_QuestionGoesToBackground(t *testing.T) {
	f := runScript(t, "\nWhat plans exist?\n", "secret")

	sent := f.bus.To(output.EndpointBackground)
	require.Len(t, sent, 1)
	assert.Equal(t, entity.ActionAskAIStream, sent[0].Action)
	assert.Equal(t, "What plans exist?", sent[0].Message)
	assert.Empty(t, sent[0].History)
}

func TestRunPanel_BusyWhileStreaming(t *testing.T) {
	f := runScript(t, "first\nsecond\n", "secret")

	assert.Len(t, f.bus.To(output.EndpointBackground), 1)
	assert.Contains(t, f.out.String(), "Please wait for the current answer to finish.")
}
