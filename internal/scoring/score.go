// Package scoring computes the heuristic priority score used to order
// promotion candidates.
package scoring

import "strings"

// Score components. All boosts are additive; the final value is clamped once,
// so rule order does not matter.
const (
	BaseScore         = 50
	EasyApplyBoost    = 20
	PromotedBoost     = 10
	ActiveReviewBoost = 15
	VerifiedPenalty   = 20
	RecentPostBoost   = 25
	RemoteBoost       = 10

	MinScore = 0
	MaxScore = 100
)

// Signals holds the discovered-job attributes the scorer looks at
type Signals struct {
	IsEasyApply bool
	IsPromoted  bool
	HasVerified bool
	Insight     string // e.g. "Actively reviewing applicants"
	PostedDate  string // loose text, e.g. "3 hours ago", "Posted today"
	WorkType    string // e.g. "remote", "hybrid", "on-site"
}

// Score computes the priority score for a discovered job. Pure and
// deterministic: identical input always yields identical output.
func Score(s Signals) int {
	score := BaseScore

	if s.IsEasyApply {
		score += EasyApplyBoost
	}
	if s.IsPromoted {
		score += PromotedBoost
	}
	if indicatesActiveReview(s.Insight) {
		score += ActiveReviewBoost
	}
	if s.HasVerified {
		score -= VerifiedPenalty
	}
	if indicatesRecentPost(s.PostedDate) {
		score += RecentPostBoost
	}
	if strings.EqualFold(strings.TrimSpace(s.WorkType), "remote") {
		score += RemoteBoost
	}

	return clamp(score)
}

// indicatesActiveReview reports whether the insight text suggests the poster
// is actively reviewing applicants.
func indicatesActiveReview(insight string) bool {
	return strings.Contains(strings.ToLower(insight), "review")
}

// indicatesRecentPost reports whether the posted-date text suggests the job
// went up within the last day.
func indicatesRecentPost(postedDate string) bool {
	lower := strings.ToLower(postedDate)
	return strings.Contains(lower, "hour") || strings.Contains(lower, "today")
}

func clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
