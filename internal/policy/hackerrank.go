package policy

// HackerRankRule folds HackerRank tabs into one activity.
type HackerRankRule struct{}

// NewHackerRankRule creates the HackerRank classification rule.
func NewHackerRankRule() *HackerRankRule {
	return &HackerRankRule{}
}

func (r *HackerRankRule) ID() string {
	return "hackerrank"
}

func (r *HackerRankRule) Label() string {
	return "HackerRank"
}

func (r *HackerRankRule) OwnerPatterns() []string {
	return BrowserFamily
}

func (r *HackerRankRule) Keywords() []string {
	return []string{"hackerrank"}
}

var _ ClassificationRule = (*HackerRankRule)(nil)
