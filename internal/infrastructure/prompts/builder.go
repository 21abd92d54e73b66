package prompts

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/prompts"

	"zenix/internal/application/port/output"
	"zenix/internal/domain/entity"
)

var _ output.PromptBuilder = (*Builder)(nil)

// SystemTemplate is the Zenix system prompt. It branches on IsSelectedElement
// and lists the registered tools.
//
//go:embed system.txt
var SystemTemplate string

type ToolInfo struct {
	Name        string
	Description string
}

// Builder renders the system message for a page and assembles the prompt.
type Builder struct {
	template prompts.PromptTemplate
	tools    []ToolInfo
}

// NewBuilder parses tmpl once. Tools are listed in the order the registry
// returns them.
func NewBuilder(tmpl string, registry output.ToolRegistry) *Builder {
	var tools []ToolInfo
	if registry != nil {
		for _, t := range registry.All() {
			tools = append(tools, ToolInfo{Name: t.Name().String(), Description: t.Description()})
		}
	}
	return &Builder{
		template: prompts.NewPromptTemplate(tmpl, []string{
			"selected", "subject", "noun", "title", "description", "url", "content", "tools",
		}),
		tools: tools,
	}
}

func (b *Builder) System(page entity.PageContent) (string, error) {
	subject, noun := "Webpage", "webpage"
	if page.IsSelectedElement {
		subject, noun = "Selected Element", "selected element"
	}

	out, err := b.template.Format(map[string]any{
		"selected":    page.IsSelectedElement,
		"subject":     subject,
		"noun":        noun,
		"title":       page.Title,
		"description": page.Description,
		"url":         page.URL,
		"content":     page.Content,
		"tools":       b.tools,
	})
	if err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// BuildMessages returns the system message, the history with roles reduced
// to user and assistant, and the user message last.
func (b *Builder) BuildMessages(userMessage string, page entity.PageContent, history []entity.ConversationTurn) ([]entity.Message, error) {
	system, err := b.System(page)
	if err != nil {
		return nil, err
	}

	messages := make([]entity.Message, 0, len(history)+2)
	messages = append(messages, entity.Message{Role: entity.RoleSystem, Content: system})
	for _, turn := range history {
		messages = append(messages, entity.Message{
			Role:    entity.NormalizeRole(turn.Role),
			Content: turn.Content,
		})
	}
	messages = append(messages, entity.Message{Role: entity.RoleUser, Content: userMessage})
	return messages, nil
}
