package scoring

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
)

const (
	CompliantThreshold = 90.0
	PartialThreshold   = 50.0

	TrendPoints      = 6
	TopFindingsLimit = 10
)

var (
	compliantWeight = decimal.NewFromInt(100)
	partialWeight   = decimal.NewFromInt(50)
)

// Score is the weighted percentage of compliant controls rounded to two
// decimals. NotApplicable controls are never part of the population.
func Score(counts domain.ControlCounts) float64 {
	total := counts.Total()
	if total <= 0 {
		return 0
	}
	weighted := compliantWeight.Mul(decimal.NewFromInt(int64(counts.Compliant))).
		Add(partialWeight.Mul(decimal.NewFromInt(int64(counts.Partial))))
	return weighted.Div(decimal.NewFromInt(int64(total))).Round(2).InexactFloat64()
}

func Classify(score float64) domain.ComplianceStatus {
	switch {
	case score >= CompliantThreshold:
		return domain.StatusCompliant
	case score >= PartialThreshold:
		return domain.StatusPartiallyCompliant
	default:
		return domain.StatusNonCompliant
	}
}

// Tally counts control verdicts for a framework. Controls without a verdict
// count as NotAssessed; verdicts for unknown controls are ignored.
func Tally(controls []domain.Control, verdicts map[string]domain.ComplianceStatus) domain.ControlCounts {
	var counts domain.ControlCounts
	for _, control := range controls {
		status, ok := verdicts[control.ID]
		if !ok {
			counts.NotAssessed++
			continue
		}
		switch status {
		case domain.StatusCompliant:
			counts.Compliant++
		case domain.StatusPartiallyCompliant:
			counts.Partial++
		case domain.StatusNonCompliant:
			counts.NonCompliant++
		case domain.StatusNotApplicable:
		default:
			counts.NotAssessed++
		}
	}
	return counts
}

// Overall sums the cached counts of every active framework assignment.
func Overall(assignments []domain.ProjectFramework) (domain.ControlCounts, float64) {
	var counts domain.ControlCounts
	for i := range assignments {
		if !assignments[i].IsActive {
			continue
		}
		counts = counts.Add(assignments[i].Counts())
	}
	return counts, Score(counts)
}

// Trend groups completed runs by completion time and returns the most recent
// points in ascending order.
func Trend(runs []domain.CheckRun, points int) []domain.TrendPoint {
	if points <= 0 {
		points = TrendPoints
	}
	grouped := make(map[int64]domain.ControlCounts)
	stamps := make(map[int64]time.Time)
	for i := range runs {
		run := runs[i]
		if run.State != domain.CheckCompleted || run.CompletedAt == nil {
			continue
		}
		key := run.CompletedAt.UTC().UnixNano()
		grouped[key] = grouped[key].Add(run.Counts())
		stamps[key] = run.CompletedAt.UTC()
	}

	keys := make([]int64, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	if len(keys) > points {
		keys = keys[:points]
	}

	trend := make([]domain.TrendPoint, 0, len(keys))
	for i := len(keys) - 1; i >= 0; i-- {
		trend = append(trend, domain.TrendPoint{
			CompletedAt: stamps[keys[i]],
			Score:       Score(grouped[keys[i]]),
		})
	}
	return trend
}

// TopPriority returns open findings ordered by risk (highest first) and due
// date (earliest first, undated last).
func TopPriority(findings []domain.Finding, limit int) []domain.Finding {
	if limit <= 0 {
		limit = TopFindingsLimit
	}
	open := make([]domain.Finding, 0, len(findings))
	for _, finding := range findings {
		if finding.IsDeleted || finding.WorkflowStatus.IsClosed() {
			continue
		}
		open = append(open, finding)
	}

	sort.SliceStable(open, func(i, j int) bool {
		ri, rj := open[i].RiskLevel.Rank(), open[j].RiskLevel.Rank()
		if ri != rj {
			return ri > rj
		}
		di, dj := open[i].DueDate, open[j].DueDate
		switch {
		case di == nil && dj == nil:
			return false
		case di == nil:
			return false
		case dj == nil:
			return true
		default:
			return di.Before(*dj)
		}
	})

	if len(open) > limit {
		open = open[:limit]
	}
	return open
}
