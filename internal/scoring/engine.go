// Package scoring computes deterministic lead priority scores and persists them.
package scoring

import (
	"strings"

	"github.com/hyperengineering/prospector/internal/types"
)

// Score bounds and level thresholds.
const (
	MaxBuyingSignalScore = 10
	MaxFitScore          = 4

	highThreshold   = 6
	mediumThreshold = 3

	// overrideSignalCount is the raw signal count that, combined with any fit,
	// promotes a lead to high regardless of its total.
	overrideSignalCount = 2

	exactMatchPoints   = 2
	partialMatchPoints = 1
)

var signalPoints = map[types.SignalType]int{
	types.SignalFunding:          2,
	types.SignalLeadershipChange: 2,
	types.SignalHiring:           1,
	types.SignalExpansion:        1,
	types.SignalNews:             1,
	types.SignalProductLaunch:    1,
}

// SignalPoints returns the uncapped points a single signal of type t contributes.
func SignalPoints(t types.SignalType) int {
	return signalPoints[t]
}

// Score computes a lead's priority score from its signals and the owner's
// target-buyer profile. It has no side effects and never fails: missing
// industry, title, or profile data simply contribute zero.
func Score(signals []types.BuyingSignal, industry, title string, targetIndustries, targetTitles []string) types.LeadScore {
	breakdown := make([]types.BreakdownEntry, 0, len(signals)+2)

	raw := 0
	for _, s := range signals {
		pts := SignalPoints(s.Type)
		if pts == 0 {
			continue
		}
		raw += pts
		breakdown = append(breakdown, types.BreakdownEntry{
			SignalType: string(s.Type),
			Name:       signalName(s),
			Points:     pts,
			Category:   types.CategoryBuyingSignal,
		})
	}
	buying := min(raw, MaxBuyingSignalScore)

	fit := 0
	if pts, target := matchTarget(industry, targetIndustries); pts > 0 {
		fit += pts
		breakdown = append(breakdown, types.BreakdownEntry{
			SignalType: "industry_match",
			Name:       matchName("Industry", target, pts),
			Points:     pts,
			Category:   types.CategoryFit,
		})
	}
	if pts, target := matchTarget(title, targetTitles); pts > 0 {
		fit += pts
		breakdown = append(breakdown, types.BreakdownEntry{
			SignalType: "title_match",
			Name:       matchName("Title", target, pts),
			Points:     pts,
			Category:   types.CategoryFit,
		})
	}

	total := buying + fit
	return types.LeadScore{
		PriorityScore:     total,
		PriorityLevel:     Level(total, fit, len(signals)),
		BuyingSignalScore: buying,
		FitScore:          fit,
		Breakdown:         breakdown,
	}
}

// Level derives the priority bucket. signalCount is the length of the raw
// signal list, including signals of unrecognized type.
func Level(priorityScore, fitScore, signalCount int) types.PriorityLevel {
	switch {
	case signalCount >= overrideSignalCount && fitScore > 0:
		return types.PriorityHigh
	case priorityScore >= highThreshold:
		return types.PriorityHigh
	case priorityScore >= mediumThreshold:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

// matchTarget compares value against each target in order and returns the
// points of the first match along with the matched target.
// Matching is symmetric: either string containing the other is a partial match.
func matchTarget(value string, targets []string) (int, string) {
	v := normalize(value)
	if v == "" {
		return 0, ""
	}
	for _, target := range targets {
		t := normalize(target)
		if t == "" {
			continue
		}
		if v == t {
			return exactMatchPoints, target
		}
		if strings.Contains(v, t) || strings.Contains(t, v) {
			return partialMatchPoints, target
		}
	}
	return 0, ""
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func signalName(s types.BuyingSignal) string {
	if title := strings.TrimSpace(s.Title); title != "" {
		return title
	}
	return strings.ReplaceAll(string(s.Type), "_", " ")
}

func matchName(kind, target string, pts int) string {
	if pts == exactMatchPoints {
		return kind + " match: " + strings.TrimSpace(target)
	}
	return kind + " partial match: " + strings.TrimSpace(target)
}
