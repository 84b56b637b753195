// Package agent drafts outbound replies for conversation threads.
//
// # Drafter
//
// A Drafter receives the thread history in log order and the target channel
// and returns a Draft: the reply text, a short rationale, and advisory
// follow-up task suggestions.
//
//	drafter, err := agent.New(ctx, cfg.Agent, logger)
//	draft, err := drafter.Draft(ctx, history, "instagram")
//
// Callers own the deadline; drafters honour ctx cancellation.
//
// # Providers
//
//   - rules: RuleDrafter, deterministic keyword templates with no network access
//   - gemini: GeminiDrafter, google.golang.org/genai against the Gemini API
//     (api_key) or Vertex AI (project + location)
//
// The Gemini drafter asks for a JSON answer:
//
//	{"reply": "...", "rationale": "...", "suggested_tasks": ["..."]}
//
// A Draft with an empty Reply is valid; the caller rejects it when no body
// was supplied. Drafters may also return ErrEmptyReply, which callers treat
// the same way.
package agent
