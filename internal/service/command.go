package service

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/capitalize-ai/session-relay/internal/assets"
	"github.com/capitalize-ai/session-relay/internal/llm"
	"github.com/capitalize-ai/session-relay/internal/model"
	"github.com/capitalize-ai/session-relay/pkg/logger"
)

var (
	commandRe     = regexp.MustCompile(`^/([a-zA-Z]+)\s*(.*)`)
	saveNameRe    = regexp.MustCompile(`^[0-9a-zA-Z ]+$`)
	loadNameRe    = regexp.MustCompile(`^[0-9a-zA-Z]+$`)
	trailingNumRe = regexp.MustCompile(`(\d+)$`)
)

const defaultSessionName = "last_session"

// CommandContext carries everything one command invocation may touch. Reply
// and SendRequest are bound to the conversation the command arrived on.
type CommandContext struct {
	State    *model.SessionState
	Client   llm.Client
	Prompts  *assets.Store
	Sessions *assets.Store

	Reply       func(ctx context.Context, text string) error
	SendRequest func(ctx context.Context) error
}

// CommandService interprets the /verb command language. Commands mutate
// session state directly and reply through the delivery client, without
// invoking a model (except retry, which re-enters the exchange).
type CommandService struct {
	logger *logger.Logger
}

// NewCommandService creates a command service.
func NewCommandService(log *logger.Logger) *CommandService {
	return &CommandService{logger: log}
}

// Handle parses and dispatches one command line. Unknown verbs reply
// "Invalid command" and are not errors; a returned error reaches the
// worker's error-reply path while mutations already applied stay applied.
func (s *CommandService) Handle(ctx context.Context, command string, cc *CommandContext) error {
	match := commandRe.FindStringSubmatch(command)
	if match == nil {
		return NewCommandError("Invalid input")
	}
	verb, args := match[1], match[2]

	switch verb {
	case "save":
		return s.save(ctx, cc, args)
	case "load":
		return s.load(ctx, cc, args)
	case "undo":
		cc.State.Undo()
		return cc.Reply(ctx, "Message undone.")
	case "retry":
		return s.retry(ctx, cc)
	case "reset":
		return s.reset(ctx, cc, args)
	case "p", "prompt", "prompts":
		return s.prompt(ctx, cc, args)
	case "s", "story":
		if args == "" {
			return nil
		}
		cc.State.StorySetting = args
		return nil
	case "h", "history":
		return s.history(ctx, cc)
	case "m", "model", "models":
		return s.model(ctx, cc, args)
	case "debug":
		return s.debug(ctx, cc)
	default:
		return cc.Reply(ctx, "Invalid command")
	}
}

func (s *CommandService) save(ctx context.Context, cc *CommandContext, args string) error {
	name := defaultSessionName
	if args != "" {
		if !saveNameRe.MatchString(args) {
			return NewCommandError("Invalid file name")
		}
		name = args
	}
	blob, err := cc.State.Dehydrate()
	if err != nil {
		return err
	}
	if err := cc.Sessions.Write(name+".json", blob); err != nil {
		return err
	}
	return cc.Reply(ctx, "Chat saved")
}

func (s *CommandService) load(ctx context.Context, cc *CommandContext, args string) error {
	name := defaultSessionName
	if args != "" {
		if !loadNameRe.MatchString(args) {
			return NewCommandError("Invalid sessions id")
		}
		name = args
	}
	blob, err := cc.Sessions.Read(name + ".json")
	if err != nil {
		return NewCommandError("File not found")
	}
	if err := cc.State.Hydrate(blob); err != nil {
		return NewCommandError("Session file is corrupt")
	}
	return cc.Reply(ctx, "Chat loaded")
}

func (s *CommandService) retry(ctx context.Context, cc *CommandContext) error {
	content, ok := cc.State.LastUserMessage()
	if !ok {
		return nil
	}
	cc.State.Undo()
	cc.State.AddUserMessage(content)
	if err := cc.Reply(ctx, "Retrying"); err != nil {
		return err
	}
	return cc.SendRequest(ctx)
}

func (s *CommandService) reset(ctx context.Context, cc *CommandContext, args string) error {
	scope := strings.TrimSpace(args)
	switch {
	case scope == "":
		cc.State.Clear()
		return cc.Reply(ctx, "Chat reset")
	case strings.HasPrefix("history", scope):
		cc.State.RollingSummaries = nil
		return cc.Reply(ctx, "History reset")
	case strings.HasPrefix("story", scope):
		cc.State.StorySetting = ""
		return cc.Reply(ctx, "Story reset")
	case strings.HasPrefix("prompt", scope):
		cc.State.SystemPrompt = ""
		return cc.Reply(ctx, "Prompt reset")
	case strings.HasPrefix("messages", scope):
		cc.State.ClearMessages()
		return cc.Reply(ctx, "Messages reset")
	default:
		// Unknown scopes are ignored without a reply.
		return nil
	}
}

func (s *CommandService) prompt(ctx context.Context, cc *CommandContext, args string) error {
	files, err := cc.Prompts.ListPrompts()
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return cc.Reply(ctx, "No prompt available.")
	}
	if args == "" {
		return cc.Reply(ctx, printNumbered(files))
	}

	var name string
	if match := trailingNumRe.FindStringSubmatch(args); match != nil {
		// The listing is 1-based.
		offset, _ := strconv.Atoi(match[1])
		if offset < 1 || offset > len(files) {
			return NewCommandError("Invalid prompt offset")
		}
		name = files[offset-1]
	} else {
		if !contains(files, args) {
			return NewCommandError("Invalid prompt name")
		}
		name = args
	}

	content, err := cc.Prompts.Read(name + ".txt")
	if err != nil {
		s.logger.Info("unable to read prompt", zap.String("name", name), zap.Error(err))
		return NewCommandError("File not found")
	}
	cc.State.SystemPrompt = string(content)
	return cc.Reply(ctx, "Prompt loaded.")
}

func (s *CommandService) history(ctx context.Context, cc *CommandContext) error {
	if len(cc.State.RollingSummaries) == 0 {
		return cc.Reply(ctx, "History is empty")
	}
	if err := cc.Reply(ctx, "History:"); err != nil {
		return err
	}
	return cc.Reply(ctx, strings.Join(cc.State.RollingSummaries, "\n"))
}

func (s *CommandService) model(ctx context.Context, cc *CommandContext, args string) error {
	models, err := cc.Client.Models(ctx)
	if err != nil {
		return err
	}
	if len(models) == 0 {
		return cc.Reply(ctx, "No models available.")
	}
	if args == "" {
		return cc.Reply(ctx, printNumbered(models))
	}

	var selected string
	if match := trailingNumRe.FindStringSubmatch(args); match != nil {
		offset, _ := strconv.Atoi(match[1])
		if offset >= 1 && offset <= len(models) {
			selected = models[offset-1]
		}
	} else {
		selected = args
	}
	if selected == "" || !contains(models, selected) {
		return cc.Reply(ctx, "Invalid models selected")
	}
	cc.State.SelectedModel = selected
	return cc.Reply(ctx, "Model selected.")
}

// debug dumps the state for operator inspection. Message contents are capped
// at 100 characters; the lock and storage internals are never included.
func (s *CommandService) debug(ctx context.Context, cc *CommandContext) error {
	truncated := make([]string, len(cc.State.Messages))
	for i, msg := range cc.State.Messages {
		content := msg.Content
		if len(content) > 100 {
			content = content[:100] + "..."
		}
		truncated[i] = content
	}
	dump, err := json.MarshalIndent(map[string]any{
		"prompt":  cc.State.SystemPrompt,
		"story":   cc.State.StorySetting,
		"message": truncated,
		"model":   cc.State.SelectedModel,
	}, "", "    ")
	if err != nil {
		return err
	}
	return cc.Reply(ctx, string(dump))
}

func printNumbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(item)
		b.WriteString("\n")
	}
	return b.String()
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
