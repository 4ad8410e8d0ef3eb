package db

import (
	"fmt"
	"strings"

	"github.com/cyberwatch-india/backend/internal/model"
)

const (
	DefaultLimit       = 50
	DefaultPage        = 1
	DefaultSearchLimit = 20
	MaxLimit           = 500
	MaxPage            = 10000
)

const incidentColumns = `
	id, title, description, url, published_at, source, category, severity,
	location, hash, tags, is_verified, created_at, updated_at`

// incidentQuery accumulates a conjunctive WHERE clause with positional args.
type incidentQuery struct {
	conds []string
	args  []any
}

func newIncidentQuery() *incidentQuery {
	q := &incidentQuery{}
	q.add("location = %s", model.DefaultLocation)
	return q
}

func (q *incidentQuery) add(format string, arg any) {
	q.args = append(q.args, arg)
	q.conds = append(q.conds, fmt.Sprintf(format, fmt.Sprintf("$%d", len(q.args))))
}

func (q *incidentQuery) addSearch(term string) {
	q.args = append(q.args, "%"+escapeLike(term)+"%")
	ph := fmt.Sprintf("$%d", len(q.args))
	q.conds = append(q.conds, fmt.Sprintf("(title ILIKE %s OR description ILIKE %s)", ph, ph))
}

func (q *incidentQuery) where() string {
	return "WHERE " + strings.Join(q.conds, " AND ")
}

// buildFindQuery translates a filter into the list query and its args.
func buildFindQuery(f model.IncidentFilter) (string, []any) {
	q := newIncidentQuery()

	if isSet(f.Source) {
		q.add("source = %s", f.Source)
	}
	if isSet(f.Severity) {
		q.add("severity = %s", f.Severity)
	}
	if isSet(f.Category) {
		q.add("category = %s", f.Category)
	}
	if f.FromDate != nil {
		q.add("published_at >= %s", *f.FromDate)
	}
	if f.ToDate != nil {
		q.add("published_at <= %s", *f.ToDate)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		q.addSearch(term)
	}

	limit, offset := pagination(f.Page, f.Limit)
	q.args = append(q.args, limit, offset)

	sql := fmt.Sprintf(`
		SELECT %s
		FROM incidents
		%s
		ORDER BY published_at DESC, created_at DESC
		LIMIT $%d OFFSET $%d`,
		incidentColumns, q.where(), len(q.args)-1, len(q.args))

	return sql, q.args
}

func buildSearchQuery(term string, limit int) (string, []any) {
	q := newIncidentQuery()
	q.addSearch(strings.TrimSpace(term))

	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	q.args = append(q.args, limit)

	sql := fmt.Sprintf(`
		SELECT %s
		FROM incidents
		%s
		ORDER BY published_at DESC, created_at DESC
		LIMIT $%d`,
		incidentColumns, q.where(), len(q.args))

	return sql, q.args
}

// pagination returns LIMIT and OFFSET; skip = (page-1)*limit.
func pagination(page, limit int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if page <= 0 {
		page = DefaultPage
	}
	if page > MaxPage {
		page = MaxPage
	}
	return limit, (page - 1) * limit
}

func isSet(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && !strings.EqualFold(v, "all")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
