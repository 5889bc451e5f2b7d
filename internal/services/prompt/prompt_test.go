package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/creatorplatform/gateway-core/pkg/mmodel"
)

func TestBuildUsesFullBlockAtExactSoftMax(t *testing.T) {
	b := &Builder{SysSoftMax: 20}

	agent := mmodel.Agent{SystemPrompt: strings.Repeat("a", 20)}

	plan := b.Build(agent, nil, nil, "hi", true, false)

	require.Equal(t, strings.Repeat("a", 20), plan.SystemPrompt.Blocks[0].Text)
	require.False(t, plan.PersonaInUserMsg)
}

func TestBuildSplitsAtSoftMaxPlusOneOnFirstTurn(t *testing.T) {
	b := &Builder{SysSoftMax: 20}

	agent := mmodel.Agent{SystemPrompt: strings.Repeat("a", 21)}
	persona := &mmodel.Persona{DisplayName: "Nova"}

	plan := b.Build(agent, persona, nil, "hi", true, false)

	require.True(t, plan.PersonaInUserMsg)
	require.Contains(t, plan.Messages[len(plan.Messages)-1].Blocks[0].Text, "You are now Nova")
}

func TestBuildOmitsPersonaOnSubsequentTurnsWhenOverSoftMax(t *testing.T) {
	b := &Builder{SysSoftMax: 20}

	agent := mmodel.Agent{SystemPrompt: strings.Repeat("a", 21)}
	persona := &mmodel.Persona{DisplayName: "Nova"}

	plan := b.Build(agent, persona, nil, "hi again", false, false)

	require.False(t, plan.PersonaInUserMsg)
	require.Equal(t, "hi again", plan.Messages[len(plan.Messages)-1].Blocks[0].Text)
}

func TestPersonaParagraphOmitsEmptyFields(t *testing.T) {
	persona := &mmodel.Persona{DisplayName: "Nova", Tone: "playful"}

	para := personaParagraph(persona)

	require.Contains(t, para, "You are now Nova")
	require.Contains(t, para, "Tone: playful")
	require.NotContains(t, para, "Catchphrase")
}

func TestCacheHintSetOnlyWhenProviderSupportsIt(t *testing.T) {
	b := &Builder{SysSoftMax: 1500}
	agent := mmodel.Agent{SystemPrompt: "be helpful"}

	withHint := b.Build(agent, nil, nil, "hi", true, true)
	require.NotNil(t, withHint.SystemPrompt.Blocks[0].Cache)

	withoutHint := b.Build(agent, nil, nil, "hi", true, false)
	require.Nil(t, withoutHint.SystemPrompt.Blocks[0].Cache)
}
