// Package strategy plans the report-download windows for a stakeholder.
//
// Windows are calendar-month slices of the uncovered date range. Each window
// expands to three report URLs, one per status partition of the upstream
// analytic endpoint, so the full status universe is covered without any
// single report growing past the server's row cap.
package strategy

import (
	"fmt"
	"strings"
	"time"
)

// BaseURL is the analytic manifest report endpoint.
const BaseURL = "https://mtr.sinir.gov.br/api/mtr/pesquisaManifestoRelatorioMtrAnalitico"

// Epoch is the first date worth harvesting for a unit with no history.
var Epoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// urlTemplates are the three status partitions. Placeholders: {ID} unit,
// {START_DATE} and {END_DATE} in dd-MM-yyyy.
var urlTemplates = []string{
	BaseURL + "/{ID}/18/8/{START_DATE}/{END_DATE}/5/0/9/0",
	BaseURL + "/{ID}/18/5/{START_DATE}/{END_DATE}/8/0/9/0",
	BaseURL + "/{ID}/18/9/{START_DATE}/{END_DATE}/8/0/5/0",
}

// Period is one inclusive date window.
type Period struct {
	Start time.Time
	End   time.Time
}

// Plan is the set of windows and URLs covering a unit's uncovered range.
type Plan struct {
	Unidade string
	Start   time.Time
	End     time.Time
	Periods []Period
	URLs    []string
}

// Build plans windows for one unit. lastEnd is the end of the range already
// covered (nil for a fresh unit, which starts at Epoch); now anchors
// "yesterday" as the window ceiling. A fully covered unit yields a plan
// with no periods.
func Build(unidade string, lastEnd *time.Time, now time.Time) Plan {
	start := Epoch
	if lastEnd != nil {
		start = lastEnd.UTC().AddDate(0, 0, 1)
	}
	start = truncateDay(start)
	end := truncateDay(now.UTC().AddDate(0, 0, -1))

	plan := Plan{Unidade: unidade, Start: start, End: end}
	if start.After(end) {
		return plan
	}

	plan.Periods = splitMonthly(start, end)
	for _, p := range plan.Periods {
		for _, tpl := range urlTemplates {
			plan.URLs = append(plan.URLs, expand(tpl, unidade, p))
		}
	}
	return plan
}

// splitMonthly slices [start, end] at calendar-month boundaries. Windows are
// contiguous and inclusive: each next window starts the day after the
// previous one ends.
func splitMonthly(start, end time.Time) []Period {
	var periods []Period
	cur := start
	for !cur.After(end) {
		monthEnd := time.Date(cur.Year(), cur.Month(), 1, 0, 0, 0, 0, time.UTC).
			AddDate(0, 1, -1)
		if monthEnd.After(end) {
			monthEnd = end
		}
		periods = append(periods, Period{Start: cur, End: monthEnd})
		cur = monthEnd.AddDate(0, 0, 1)
	}
	return periods
}

func expand(tpl, unidade string, p Period) string {
	r := strings.NewReplacer(
		"{ID}", unidade,
		"{START_DATE}", formatDate(p.Start),
		"{END_DATE}", formatDate(p.End),
	)
	return r.Replace(tpl)
}

func formatDate(t time.Time) string {
	return fmt.Sprintf("%02d-%02d-%04d", t.Day(), int(t.Month()), t.Year())
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
