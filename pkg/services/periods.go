package services

import (
	"fmt"
	"time"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/apperrors"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/models"
)

const (
	// seriesWindow is the default span of the performance chart.
	seriesWindow = 28 * 24 * time.Hour
	// bucketWidth is the span of one performance bucket.
	bucketWidth = 7 * 24 * time.Hour
	// defaultSeriesCarteras caps the carteras charted when no cartera is selected.
	defaultSeriesCarteras = 5
)

// resolveSeriesWindow applies the performance window defaults and rejects empty windows.
func resolveSeriesWindow(start, end *time.Time, now time.Time) (time.Time, time.Time, error) {
	var from, to time.Time
	switch {
	case start == nil && end == nil:
		to = now
		from = to.Add(-seriesWindow)
	case end == nil:
		from, to = *start, now
	case start == nil:
		to = *end
		from = to.Add(-seriesWindow)
	default:
		from, to = *start, *end
	}

	if !from.Before(to) {
		return time.Time{}, time.Time{}, apperrors.NewValidationError("end_date", "must be after start_date")
	}
	return from, to, nil
}

// weekBuckets splits [start, end) into consecutive 7-day periods, clipping the last to end.
func weekBuckets(start, end time.Time) []models.Period {
	var periods []models.Period
	for from, n := start, 1; from.Before(end); n++ {
		to := from.Add(bucketWidth)
		if to.After(end) {
			to = end
		}
		periods = append(periods, models.Period{
			Label: fmt.Sprintf("Sem %d", n),
			Start: from,
			End:   to,
		})
		from = to
	}
	return periods
}

// monthWindow is a half-open [Start, End) calendar month.
type monthWindow struct {
	Start time.Time
	End   time.Time
}

// monthWindows returns the calendar month containing now and the month before it.
// time.Date normalizes month 0 to December of the previous year.
func monthWindows(now time.Time) (current, previous monthWindow) {
	y, m, _ := now.Date()
	loc := now.Location()

	thisMonth := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	current = monthWindow{Start: thisMonth, End: time.Date(y, m+1, 1, 0, 0, 0, 0, loc)}
	previous = monthWindow{Start: time.Date(y, m-1, 1, 0, 0, 0, 0, loc), End: thisMonth}
	return current, previous
}
