package policy

// LeetCodeRule folds every LeetCode tab into one activity.
type LeetCodeRule struct{}

// NewLeetCodeRule creates the LeetCode classification rule.
func NewLeetCodeRule() *LeetCodeRule {
	return &LeetCodeRule{}
}

func (r *LeetCodeRule) ID() string {
	return "leetcode"
}

// Label is the title stored for any matching tab.
func (r *LeetCodeRule) Label() string {
	return "LeetCode"
}

func (r *LeetCodeRule) OwnerPatterns() []string {
	return BrowserFamily
}

func (r *LeetCodeRule) Keywords() []string {
	return []string{"leetcode"}
}

// Ensure LeetCodeRule implements ClassificationRule.
var _ ClassificationRule = (*LeetCodeRule)(nil)
