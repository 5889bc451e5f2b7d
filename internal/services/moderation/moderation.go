// Package moderation implements the Moderation Gate (C6): a keyword/regex
// blocklist applied pre- and post-stream. The blocklist is held behind an
// atomic pointer swap so a future reload operation never needs a restart,
// grounded on the teacher's preference for lock-free hot-path reads over a
// reload mutex.
package moderation

import (
	"regexp"
	"strings"
	"sync/atomic"
)

// Result is the outcome of a check.
type Result struct {
	Blocked bool
	Reason  string
}

// Policy is an immutable snapshot of the blocklist: a flat set of keywords
// (case-insensitive substring match) plus optional compiled regexes.
type Policy struct {
	keywords []string
	patterns []*regexp.Regexp
}

// NewPolicy compiles a Policy from configuration. Malformed regexes are
// skipped rather than failing startup, since a blocklist load is not a
// reason to refuse every request.
func NewPolicy(keywords []string, regexes []string) *Policy {
	p := &Policy{keywords: make([]string, 0, len(keywords))}

	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			p.keywords = append(p.keywords, strings.ToLower(k))
		}
	}

	for _, r := range regexes {
		if re, err := regexp.Compile(r); err == nil {
			p.patterns = append(p.patterns, re)
		}
	}

	return p
}

func (p *Policy) match(text string) (bool, string) {
	lower := strings.ToLower(text)

	for _, k := range p.keywords {
		if strings.Contains(lower, k) {
			return true, k
		}
	}

	for _, re := range p.patterns {
		if re.MatchString(text) {
			return true, re.String()
		}
	}

	return false, ""
}

// Gate is the Moderation Gate service. The zero value panics on first use;
// construct with NewGate.
type Gate struct {
	policy atomic.Pointer[Policy]
}

// NewGate returns a Gate starting with the given policy.
func NewGate(initial *Policy) *Gate {
	g := &Gate{}
	g.policy.Store(initial)

	return g
}

// Reload atomically swaps in a new policy; in-flight checks using the old
// policy are unaffected.
func (g *Gate) Reload(p *Policy) {
	g.policy.Store(p)
}

// CheckPre is the fail-closed pre-check: any hit refuses the request before
// any credit is frozen (spec.md §4.6).
func (g *Gate) CheckPre(text string) Result {
	blocked, reason := g.policy.Load().match(text)
	return Result{Blocked: blocked, Reason: reason}
}

// CheckPost is the post-check applied to the assistant's emitted text. A
// hit does not discard output already sent to the client; the caller
// (Stream Orchestrator) is responsible for the penalty-settle behavior.
func (g *Gate) CheckPost(text string) Result {
	blocked, reason := g.policy.Load().match(text)
	return Result{Blocked: blocked, Reason: reason}
}
