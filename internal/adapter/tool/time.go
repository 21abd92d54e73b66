package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

// dateLayout renders like a browser's Date.prototype.toString.
const dateLayout = "Mon Jan 02 2006 15:04:05 GMT-0700 (MST)"

var _ output.ToolPort = (*CurrentTimeTool)(nil)

type CurrentTimeTool struct {
	now    func() time.Time
	logger output.LoggerPort
}

func NewCurrentTimeTool(logger output.LoggerPort) *CurrentTimeTool {
	return &CurrentTimeTool{now: time.Now, logger: logger}
}

func (t *CurrentTimeTool) Name() entity.ToolName { return entity.ToolGetCurrentTime }

func (t *CurrentTimeTool) Description() string {
	return "Get the current time in a specified timezone (requires IANA timezone string like 'Asia/Kolkata' for India)"
}

func (t *CurrentTimeTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"timezone": map[string]interface{}{
				"type":        "string",
				"description": "IANA timezone, e.g. Asia/Kolkata. Server local time when omitted",
			},
		},
	}
}

func (t *CurrentTimeTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Timezone string `json:"timezone"`
	}
	if strings.TrimSpace(args) != "" {
		if err := json.Unmarshal([]byte(args), &input); err != nil {
			return "", fmt.Errorf("parse arguments: %w", err)
		}
	}

	now := t.now()
	if input.Timezone != "" {
		loc, err := time.LoadLocation(input.Timezone)
		if err != nil {
			return "", fmt.Errorf("unknown timezone %q", input.Timezone)
		}
		now = now.In(loc)
	}

	if t.logger != nil {
		t.logger.Debug("Current time requested", "timezone", input.Timezone)
	}
	return now.Format(dateLayout), nil
}
