// ABOUTME: Prompt construction for LLM-backed reply drafting
// ABOUTME: Adds per-channel tone guidance and the JSON answer contract

package agent

import (
	"fmt"
	"strings"
)

const baseSystemPrompt = `
You are the reply assistant of a small business's shared customer inbox.

Your role:
- Draft the next outbound reply in the conversation you are given.
- Be warm, specific and brief. Never invent prices, dates or order details that are not in the conversation.
- Answer in the same language the customer used.
- If the customer is upset, acknowledge it before anything else.

Answer ONLY with a JSON object of this shape:
{"reply": "<message to send>", "rationale": "<one sentence on why this reply>", "suggested_tasks": ["<short follow-up task>", ...]}

Suggest at most three follow-up tasks, and none if nothing needs doing.
`

var channelGuidance = map[string]string{
	"website":   "Channel: website live chat. Short paragraphs; markdown is rendered.",
	"instagram": "Channel: Instagram direct message. One or two short sentences, casual tone, no markdown.",
	"facebook":  "Channel: Facebook page message. Friendly and concise, no markdown.",
	"messenger": "Channel: Messenger. Conversational, at most three sentences, no markdown.",
	"matrix":    "Channel: Matrix chat room. Plain text.",
}

// BuildSystemPrompt returns the system instruction for a channel.
func BuildSystemPrompt(channel string) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(baseSystemPrompt))
	sb.WriteString("\n\n")

	if guidance, ok := channelGuidance[channel]; ok {
		sb.WriteString(guidance)
	} else {
		sb.WriteString(fmt.Sprintf("Channel: %s.", channel))
	}
	return sb.String()
}
