// Package models defines data structures and domain types.
package models

import (
	"slices"
	"strings"
)

// Display names for the resources the dashboard tracks.
const (
	ResourceGeminiPro   = "Gemini Pro"
	ResourceGeminiFlash = "Gemini Flash"
	ResourceClaude      = "Claude"
)

// resourceAliases maps upstream model ids and legacy labels to display names.
var resourceAliases = map[string]string{
	"gemini-3-pro-high": ResourceGeminiPro,
	"gemini-3-flash":    ResourceGeminiFlash,
	"claude-sonnet-4-5": ResourceClaude,
	"Claude 3.5 Sonnet": ResourceClaude,
	ResourceGeminiPro:   ResourceGeminiPro,
	ResourceGeminiFlash: ResourceGeminiFlash,
	ResourceClaude:      ResourceClaude,
}

// ResourceDisplayName maps an upstream model id to a tracked resource name.
// The second return is false for models that are not tracked.
func ResourceDisplayName(modelID string) (string, bool) {
	name, ok := resourceAliases[modelID]
	return name, ok
}

// resourceRank orders Pro before Flash before everything else.
func resourceRank(name string) int {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "pro"):
		return 1
	case strings.Contains(lower, "flash"):
		return 2
	default:
		return 3
	}
}

// SortResources orders resources for display.
func SortResources(resources []ResourceQuota) {
	slices.SortStableFunc(resources, func(a, b ResourceQuota) int {
		return resourceRank(a.Name) - resourceRank(b.Name)
	})
}
