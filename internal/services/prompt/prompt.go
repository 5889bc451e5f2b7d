// Package prompt implements the Prompt Builder (C5): persona paragraph
// assembly and the SYS_SOFT_MAX split strategy from spec.md §4.5. Pure
// function package, no I/O, unit-tested at the SYS_SOFT_MAX boundary.
package prompt

import (
	"strings"

	"github.com/creatorplatform/gateway-core/pkg/mmodel"
)

// DefaultSysSoftMax is spec.md §4.5's default compatibility threshold.
const DefaultSysSoftMax = 1500

// Builder assembles prompt plans. SysSoftMax is read from configuration;
// zero means DefaultSysSoftMax.
type Builder struct {
	SysSoftMax int
}

func (b *Builder) softMax() int {
	if b.SysSoftMax <= 0 {
		return DefaultSysSoftMax
	}

	return b.SysSoftMax
}

// Build assembles the system prompt, ordered message list, and an input
// token estimate, per spec.md §4.5. isFirstTurn distinguishes the
// first-turn-vs-subsequent-turn split strategy; supportsCacheHint marks the
// system message cacheable when the destination provider supports it.
func (b *Builder) Build(agent mmodel.Agent, persona *mmodel.Persona, history []mmodel.ConversationMessage, userInput string, isFirstTurn, supportsCacheHint bool) mmodel.PromptPlan {
	personaBlock := personaParagraph(persona)

	full := strings.TrimSpace(agent.SystemPrompt)
	if personaBlock != "" {
		full = strings.TrimSpace(full + "\n\n" + personaBlock)
	}

	softMax := b.softMax()

	var (
		systemText       string
		personaInUserMsg bool
		effectiveInput   = userInput
	)

	if len(full) <= softMax {
		systemText = full
	} else {
		systemText = trimSystemPrompt(agent.SystemPrompt, softMax)

		if personaBlock != "" {
			if isFirstTurn {
				effectiveInput = strings.TrimSpace(personaBlock + "\n\n" + userInput)
				personaInUserMsg = true
			}
			// Subsequent turns: persona detail already lives in history; do
			// not duplicate it in every turn.
		}
	}

	messages := make([]mmodel.PromptMessage, 0, len(history)+1)
	for _, h := range history {
		messages = append(messages, mmodel.PromptMessage{
			Role:   h.Role,
			Blocks: []mmodel.ContentBlock{{Text: h.Content}},
		})
	}

	messages = append(messages, mmodel.PromptMessage{
		Role:   mmodel.RoleUser,
		Blocks: []mmodel.ContentBlock{{Text: effectiveInput}},
	})

	systemMsg := mmodel.PromptMessage{
		Role:   mmodel.RoleSystem,
		Blocks: []mmodel.ContentBlock{{Text: systemText}},
	}

	if supportsCacheHint {
		systemMsg.Blocks[0].Cache = &mmodel.CacheHint{Type: "ephemeral"}
	}

	estInputTokens := estimateTokens(systemText) + estimateTokens(effectiveInput)
	for _, h := range history {
		estInputTokens += estimateTokens(h.Content)
	}

	return mmodel.PromptPlan{
		SystemPrompt:     systemMsg,
		Messages:         messages,
		EstInputTokens:   estInputTokens,
		PersonaInUserMsg: personaInUserMsg,
	}
}

// personaParagraph builds the deterministic identity paragraph from
// spec.md §4.5: identity claim, introduction, tone, catchphrase, target
// audience, content style, keywords, taboos - empty fields omitted, not
// rendered as empty lines.
func personaParagraph(p *mmodel.Persona) string {
	if p == nil {
		return ""
	}

	var lines []string

	identity := "You are now " + p.DisplayName + "."
	if p.Industry != "" {
		identity += " You operate in the " + p.Industry + " space."
	}

	lines = append(lines, identity)

	appendIf(&lines, p.Introduction, "")
	appendIf(&lines, p.Tone, "Tone: ")
	appendIf(&lines, p.Catchphrase, "Catchphrase: ")
	appendIf(&lines, p.TargetAudience, "Target audience: ")
	appendIf(&lines, p.ContentStyle, "Content style: ")

	if len(p.Keywords) > 0 {
		lines = append(lines, "Keywords: "+strings.Join(p.Keywords, ", "))
	}

	if len(p.Taboos) > 0 {
		lines = append(lines, "Avoid: "+strings.Join(p.Taboos, ", "))
	}

	return strings.Join(lines, "\n")
}

func appendIf(lines *[]string, value, prefix string) {
	if strings.TrimSpace(value) == "" {
		return
	}

	*lines = append(*lines, prefix+value)
}

// trimSystemPrompt keeps the agent's own instructions and drops persona
// detail entirely, truncating further if the agent's instructions alone
// still exceed softMax.
func trimSystemPrompt(agentPrompt string, softMax int) string {
	trimmed := strings.TrimSpace(agentPrompt)
	if len(trimmed) <= softMax {
		return trimmed
	}

	return trimmed[:softMax]
}

// estimateTokens is a coarse, provider-agnostic fallback estimate (roughly
// 4 characters per token for English text) used only until C1's freeze
// estimate recomputes with the model's own k_in/k_out coefficients.
func estimateTokens(text string) int64 {
	if text == "" {
		return 0
	}

	return int64(len(text))/4 + 1
}
