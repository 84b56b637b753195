// ABOUTME: Gemini-backed Drafter using the google.golang.org/genai SDK
// ABOUTME: Supports both the Gemini API (api key) and Vertex AI (project/location) backends

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/2389/coven-inbox/internal/store"
)

// contentGenerator is the part of *genai.Models the drafter calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures a GeminiDrafter. APIKey selects the Gemini API;
// otherwise Project and Location select Vertex AI.
type GeminiConfig struct {
	Model    string
	APIKey   string
	Project  string
	Location string
}

// GeminiDrafter drafts replies with a Gemini model.
type GeminiDrafter struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

type geminiAnswer struct {
	Reply          string   `json:"reply"`
	Rationale      string   `json:"rationale"`
	SuggestedTasks []string `json:"suggested_tasks"`
}

// NewGeminiDrafter creates a genai client for the configured backend.
func NewGeminiDrafter(ctx context.Context, cfg GeminiConfig, logger *slog.Logger) (*GeminiDrafter, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.APIKey == "" {
		if cfg.Project == "" || cfg.Location == "" {
			return nil, fmt.Errorf("gemini drafter: api key or project and location required")
		}
		clientCfg = &genai.ClientConfig{
			Project:  cfg.Project,
			Location: cfg.Location,
			Backend:  genai.BackendVertexAI,
		}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return newGeminiDrafter(client.Models, cfg.Model, logger), nil
}

func newGeminiDrafter(models contentGenerator, model string, logger *slog.Logger) *GeminiDrafter {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiDrafter{
		models: models,
		model:  model,
		logger: logger.With("component", "gemini"),
	}
}

// Draft asks the model for the next reply in the thread.
func (g *GeminiDrafter) Draft(ctx context.Context, history []*store.Message, channel string) (*Draft, error) {
	contents := historyToContents(history)
	if len(contents) == 0 {
		contents = append(contents, genai.NewContentFromText("The customer has not written anything yet. Draft a short greeting.", genai.RoleUser))
	}

	temp := float32(0.4)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(BuildSystemPrompt(channel), genai.RoleUser),
		Temperature:       &temp,
		ResponseMIMEType:  "application/json",
	}

	res, err := g.models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	draft, err := parseAnswer(res.Text())
	if err != nil {
		return nil, err
	}

	g.logger.Debug("draft generated", "model", g.model, "channel", channel, "suggested_tasks", len(draft.SuggestedTasks))
	return draft, nil
}

// historyToContents maps inbound messages to the user role and outbound to
// the model role. Consecutive messages with the same role are kept separate.
func historyToContents(history []*store.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		if strings.TrimSpace(m.Body) == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if m.Direction == store.DirectionOutbound {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Body, role))
	}
	return contents
}

// parseAnswer decodes the model's JSON answer. Models occasionally wrap JSON
// in a markdown fence even when asked not to. An empty reply yields a Draft
// with no Reply; callers decide whether that is acceptable.
func parseAnswer(text string) (*Draft, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	if text == "" {
		return &Draft{SuggestedTasks: []string{}}, nil
	}

	var answer geminiAnswer
	if err := json.Unmarshal([]byte(text), &answer); err != nil {
		return nil, fmt.Errorf("decoding model answer: %w", err)
	}
	tasks := make([]string, 0, len(answer.SuggestedTasks))
	for _, task := range answer.SuggestedTasks {
		if task = strings.TrimSpace(task); task != "" {
			tasks = append(tasks, task)
		}
	}

	return &Draft{
		Reply:          strings.TrimSpace(answer.Reply),
		Rationale:      strings.TrimSpace(answer.Rationale),
		SuggestedTasks: tasks,
	}, nil
}
