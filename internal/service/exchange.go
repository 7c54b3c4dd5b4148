package service

import (
	"strings"

	"github.com/capitalize-ai/session-relay/internal/config"
	"github.com/capitalize-ai/session-relay/internal/llm"
	"github.com/capitalize-ai/session-relay/internal/model"
)

// BuildCompletionRequest assembles the provider-agnostic completion request
// from session state: the system prompt, a story-setting line, the rolling
// summaries joined into one history block, then the live transcript, in that
// order. The session's selected model takes precedence over the namespace
// default.
func BuildCompletionRequest(state *model.SessionState, ns *config.NamespaceConfig, maxTokens int) *llm.CompletionRequest {
	var messages []llm.ChatMessage

	if state.SystemPrompt != "" {
		messages = append(messages, llm.ChatMessage{
			Role:    string(model.RoleSystem),
			Content: state.SystemPrompt,
		})
	}
	if state.StorySetting != "" {
		messages = append(messages, llm.ChatMessage{
			Role:    string(model.RoleSystem),
			Content: "The story setting is as follow: " + state.StorySetting + "\n",
		})
	}
	if len(state.RollingSummaries) > 0 {
		messages = append(messages, llm.ChatMessage{
			Role:    string(model.RoleSystem),
			Content: "History of the story so far:\n" + strings.Join(state.RollingSummaries, "\n"),
		})
	}
	for _, msg := range state.Messages {
		messages = append(messages, llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}

	modelName := state.SelectedModel
	if modelName == "" {
		modelName = ns.Model
	}

	return &llm.CompletionRequest{
		Model:     modelName,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
}
