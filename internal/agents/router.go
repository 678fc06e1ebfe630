package agents

import (
	"regexp"
	"strings"

	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/tools"
)

type RoutingMode string

const (
	// RoutingLoose sends any lookup step to search.
	RoutingLoose RoutingMode = "loose"
	// RoutingStrict sends lookup steps to search only with a recency cue.
	RoutingStrict RoutingMode = "strict"
)

var (
	navigationWords = wordsPattern("browse", "visit", "navigate", "open", "go to")
	lookupWords     = wordsPattern("search", "research", "find", "look up", "lookup", "google", "browse")
	recencyWords    = wordsPattern("latest", "recent", "today", "news", "current", "this week", "this year", "up-to-date")
)

// wordsPattern matches any of words as whole words.
func wordsPattern(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Rule maps a predicate over the lower-cased step text to a capability.
type Rule struct {
	Capability models.Capability
	Match      func(lower string) bool
}

// Router picks a capability for a step from an ordered rule table. The first
// matching rule wins; no match means knowledge.
type Router struct {
	Rules []Rule
}

func NewRouter(mode RoutingMode) *Router {
	search := lookupWords.MatchString
	if mode == RoutingStrict {
		search = func(s string) bool { return lookupWords.MatchString(s) && recencyWords.MatchString(s) }
	}
	return &Router{Rules: []Rule{
		{Capability: models.CapabilityBrowser, Match: func(s string) bool {
			if !navigationWords.MatchString(s) {
				return false
			}
			_, ok := tools.ResolveURL(s)
			return ok
		}},
		{Capability: models.CapabilitySearch, Match: search},
	}}
}

func (r *Router) Route(description string) models.Capability {
	lower := strings.ToLower(description)
	for _, rule := range r.Rules {
		if rule.Match(lower) {
			return rule.Capability
		}
	}
	return models.CapabilityKnowledge
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
