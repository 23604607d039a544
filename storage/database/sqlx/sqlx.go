// Package sqlxrepos implements the repositories on PostgreSQL with sqlx.
package sqlxrepos

import (
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/edunex/core"
)

const uniqueViolation = "23505"

type repository struct {
	db *sqlx.DB
}

// getExec returns the executor a service passed (a transaction), falling back to the pool.
func (repo repository) getExec(svcExec []core.DBExecutor) sqlx.ExtContext {
	if len(svcExec) > 0 && svcExec[0] != nil {
		if exec, ok := svcExec[0].(sqlx.ExtContext); ok {
			return exec
		}
	}
	return repo.db
}

// isUniqueViolation reports whether err is a unique violation, optionally of one of the given constraints.
func isUniqueViolation(err error, constraints ...string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code != uniqueViolation {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, c := range constraints {
		if pqErr.Constraint == c {
			return true
		}
	}
	return false
}

// trapNoRowsErr maps psql "no rows" err to notFound
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// orderBy builds an ORDER BY clause out of the orderings whose field is in columns ({field: column}).
func orderBy(ordering []core.DBOrdering, columns map[string]string, def string) string {
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if col, ok := columns[ord.Field]; ok {
			clauses = append(clauses, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(clauses) == 0 {
		return " ORDER BY " + def
	}
	return " ORDER BY " + strings.Join(clauses, ", ")
}

// where joins conditions with AND.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

// in adds "col IN (?)" expanded to the values.
func (w *where) in(col string, vals interface{}) error {
	q, args, err := sqlx.In(col+" IN (?)", vals)
	if err != nil {
		return err
	}
	w.add(q, args...)
	return nil
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}
