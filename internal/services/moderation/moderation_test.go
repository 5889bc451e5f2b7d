package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPreBlocksOnKeywordHit(t *testing.T) {
	gate := NewGate(NewPolicy([]string{"forbidden"}, nil))

	result := gate.CheckPre("this text is Forbidden content")

	require.True(t, result.Blocked)
	require.Equal(t, "forbidden", result.Reason)
}

func TestCheckPreAllowsCleanText(t *testing.T) {
	gate := NewGate(NewPolicy([]string{"forbidden"}, nil))

	result := gate.CheckPre("perfectly fine text")

	require.False(t, result.Blocked)
}

func TestReloadSwapsPolicyAtomically(t *testing.T) {
	gate := NewGate(NewPolicy([]string{"old"}, nil))
	require.False(t, gate.CheckPre("new").Blocked)

	gate.Reload(NewPolicy([]string{"new"}, nil))

	require.True(t, gate.CheckPre("new").Blocked)
	require.False(t, gate.CheckPre("old").Blocked)
}

func TestRegexPatternMatches(t *testing.T) {
	gate := NewGate(NewPolicy(nil, []string{`\d{3}-\d{2}-\d{4}`}))

	require.True(t, gate.CheckPost("ssn 123-45-6789 leaked").Blocked)
	require.False(t, gate.CheckPost("no sensitive data here").Blocked)
}
