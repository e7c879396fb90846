package repositories

import (
	"strconv"
	"strings"
	"time"
)

// whereBuilder accumulates AND-ed conditions with numbered placeholders.
// Each "?" in a condition is replaced by the next $n.
type whereBuilder struct {
	conds []string
	args  []any
}

// add appends a condition; the number of "?" must equal len(args).
func (w *whereBuilder) add(cond string, args ...any) {
	var b strings.Builder
	next := 0
	for _, r := range cond {
		if r == '?' && next < len(args) {
			w.args = append(w.args, args[next])
			b.WriteString("$")
			b.WriteString(strconv.Itoa(len(w.args)))
			next++
			continue
		}
		b.WriteRune(r)
	}
	w.conds = append(w.conds, b.String())
}

// arg registers a value without a condition and returns its placeholder.
func (w *whereBuilder) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

// clause renders "WHERE a AND b", or "" when there are no conditions.
func (w *whereBuilder) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

// DateRange restricts a timestamp column. From is inclusive; To is inclusive
// unless ToExclusive is set, which gives the half-open [From, To) form.
type DateRange struct {
	From        *time.Time
	To          *time.Time
	ToExclusive bool
}

func (d DateRange) apply(w *whereBuilder, column string) {
	if d.From != nil {
		w.add(column+" >= ?", *d.From)
	}
	if d.To != nil {
		if d.ToExclusive {
			w.add(column+" < ?", *d.To)
		} else {
			w.add(column+" <= ?", *d.To)
		}
	}
}

// CaseFilter restricts the cases table (aliased c). Nil fields mean no restriction.
type CaseFilter struct {
	Created   DateRange
	CarteraID *int64
	GestorID  *int64
	StatusID  *int64
}

func (f CaseFilter) apply(w *whereBuilder) {
	f.Created.apply(w, "c.created_at")
	if f.CarteraID != nil {
		w.add("c.cartera_id = ?", *f.CarteraID)
	}
	if f.GestorID != nil {
		w.add("c.assigned_to_id = ?", *f.GestorID)
	}
	if f.StatusID != nil {
		w.add("c.status_id = ?", *f.StatusID)
	}
}

// CaseSubset optionally limits a child table (promises, activities) to a set of case ids.
// When Restrict is true and IDs is empty the subset matches nothing, and
// repositories answer zero without querying.
type CaseSubset struct {
	Restrict bool
	IDs      []int64
}

// Empty reports whether the subset is restricted to no cases at all.
func (s CaseSubset) Empty() bool {
	return s.Restrict && len(s.IDs) == 0
}

func (s CaseSubset) apply(w *whereBuilder, column string) {
	if s.Restrict {
		w.add(column+" = ANY(?)", s.IDs)
	}
}
