// Package policy implements the Strategy pattern for window-title classification.
// Each rule maps browser tabs about a known site to one canonical activity label,
// so every tab title on that site aggregates into a single record.
package policy

import "strings"

// BrowserFamily lists owner names treated as web browsers: macOS application
// names plus the process names Linux reports. An owner must equal one of them,
// ignoring case and a trailing ".app" or ".exe".
var BrowserFamily = []string{
	"Google Chrome",
	"google-chrome",
	"chrome",
	"Chromium",
	"chromium-browser",
	"Safari",
	"Firefox",
	"firefox-esr",
	"firefox-bin",
	"Microsoft Edge",
	"msedge",
	"Brave Browser",
	"brave",
	"Arc",
	"Opera",
	"Vivaldi",
}

// ClassificationRule defines the strategy interface for rewriting a title.
type ClassificationRule interface {
	// ID returns unique identifier (e.g., "leetcode").
	ID() string

	// Label returns the canonical title stored instead of the raw one.
	Label() string

	// OwnerPatterns returns the exact owner names the rule applies to.
	OwnerPatterns() []string

	// Keywords returns title substrings that trigger the rule.
	// Patterns are matched case-insensitively.
	Keywords() []string
}

// Applies reports whether rule rewrites a window with the given owner and title.
func Applies(rule ClassificationRule, ownerName, title string) bool {
	return matchesOwner(ownerName, rule.OwnerPatterns()) && containsAny(title, rule.Keywords())
}

// matchesOwner compares whole names so "Archive Utility" is not "Arc".
func matchesOwner(ownerName string, names []string) bool {
	owner := normalizeOwner(ownerName)
	if owner == "" {
		return false
	}
	for _, n := range names {
		if normalizeOwner(n) == owner {
			return true
		}
	}
	return false
}

func normalizeOwner(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.TrimSuffix(name, ".app")
	return strings.TrimSuffix(name, ".exe")
}

func containsAny(s string, patterns []string) bool {
	lower := strings.ToLower(s)
	for _, p := range patterns {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
