package reporter

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/cursorbeacon/cursorbeacon/internal/models"
	"github.com/cursorbeacon/cursorbeacon/pkg/utils"
)

// Source is the history the reporter summarises. *database.Repository
// satisfies it.
type Source interface {
	GetOutcomeSummarySince(since time.Time) ([]models.OutcomeSummary, error)
	GetHourSummarySince(since time.Time) ([]models.HourSummary, error)
	CountErrorsSince(since time.Time, source string) (int64, error)
}

// Reporter handles report generation
type Reporter struct {
	repo Source
	now  func() time.Time
}

// New creates a new reporter
func New(repo Source) *Reporter {
	return &Reporter{
		repo: repo,
		now:  time.Now,
	}
}

// GenerateReport generates a report for the specified period
func (r *Reporter) GenerateReport(periodType string) (*models.Report, error) {
	period, err := GetPeriod(periodType, r.now())
	if err != nil {
		return nil, err
	}

	// SQL does the COUNT and AVG per outcome
	outcomes, err := r.repo.GetOutcomeSummarySince(period.Start)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get outcome summary")
	}

	hours, err := r.repo.GetHourSummarySince(period.Start)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get hourly summary")
	}

	failures, err := r.repo.CountErrorsSince(period.Start, models.SourceActivate)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count failures")
	}

	var total int
	var weighted float64
	for _, o := range outcomes {
		total += o.Count
		weighted += o.AvgDurationMs * float64(o.Count)
	}

	report := &models.Report{
		Period:      *period,
		Outcomes:    outcomes,
		Hours:       hours,
		Activations: total,
		Failures:    int(failures),
		GeneratedAt: r.now(),
	}
	if total > 0 {
		report.AvgDurationMs = weighted / float64(total)
		for i := range report.Outcomes {
			report.Outcomes[i].Percentage = float64(report.Outcomes[i].Count) / float64(total) * 100.0
		}
	}

	return report, nil
}

// GetPeriod calculates the time range of a day, week or month report
func GetPeriod(periodType string, now time.Time) (*models.ReportPeriod, error) {
	var start, end time.Time

	switch periodType {
	case "day", "today":
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 0, 1)

	case "week":
		// Start of week (Monday)
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday = 7
		}
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -(weekday - 1))
		end = start.AddDate(0, 0, 7)

	case "month":
		start = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		end = start.AddDate(0, 1, 0)

	default:
		return nil, errors.Errorf("invalid period type: %s (valid: day, week, month)", periodType)
	}

	return &models.ReportPeriod{
		Start: start,
		End:   end,
		Type:  periodType,
	}, nil
}

// FormatReportText formats the report as human-readable text
func (r *Reporter) FormatReportText(report *models.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Activation Report - %s\n", report.Period.Type)
	fmt.Fprintf(&b, "Period: %s to %s\n",
		report.Period.Start.Format("2006-01-02 15:04"),
		report.Period.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Activations: %d  Failures: %d  Avg Duration: %s\n\n",
		report.Activations, report.Failures, utils.FormatMillis(report.AvgDurationMs))

	if report.Activations == 0 {
		b.WriteString("No activations recorded for this period.\n")
		return b.String()
	}

	fmt.Fprintf(&b, "%-20s %10s %14s %10s\n", "Outcome", "Count", "Avg Duration", "Percent")
	b.WriteString(strings.Repeat("-", 57) + "\n")
	for _, o := range report.Outcomes {
		fmt.Fprintf(&b, "%-20s %10d %14s %9.1f%%\n",
			utils.Truncate(o.Outcome, 20),
			o.Count,
			utils.FormatMillis(o.AvgDurationMs),
			o.Percentage)
	}

	if len(report.Hours) > 0 {
		b.WriteString("\nBy hour:\n")
		for _, h := range report.Hours {
			fmt.Fprintf(&b, "  %02d:00 %s %d\n", h.Hour, strings.Repeat("#", min(h.Count, 40)), h.Count)
		}
	}

	return b.String()
}

// FormatReportJSON formats the report as JSON
func (r *Reporter) FormatReportJSON(report *models.Report) (string, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal JSON")
	}
	return string(data), nil
}
