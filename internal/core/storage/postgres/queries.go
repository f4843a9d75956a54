package postgres

import (
	"fmt"
	"strings"

	"github.com/deltawatch-lab/deltawatch/internal/core/source"
)

// Source queries are assembled from validated descriptors only. Identifiers are quoted
// after allow-list validation; every value ($n) is a bound parameter.

// buildCountByGroupQuery counts rows in [$1, $2) grouped by the single group column.
func buildCountByGroupQuery(src source.Validated) (string, error) {
	if src.Kind() != source.TimeWindowed {
		return "", fmt.Errorf("source %s: grouped time query needs a time-windowed source, got %q", src.Name(), src.Kind())
	}
	group := source.QuoteIdentifier(src.GroupColumns()[0])
	date := source.QuoteIdentifier(src.DateColumn())

	return fmt.Sprintf(`
		SELECT %s AS group_key, COUNT(*) AS cnt
		FROM %s
		WHERE %s >= $1 AND %s < $2
		GROUP BY %s
		ORDER BY cnt DESC
	`, groupKeyExpr(group), source.QuoteIdentifier(src.Name()), date, date, group), nil
}

// buildCountAfterIDQuery counts rows with id > $1 and reports the largest id per group,
// so the new boundary is exactly the maximum id that was counted.
func buildCountAfterIDQuery(src source.Validated) (string, error) {
	if src.Kind() != source.IDWindowed {
		return "", fmt.Errorf("source %s: id query needs an id-windowed source, got %q", src.Name(), src.Kind())
	}
	group := source.QuoteIdentifier(src.GroupColumns()[0])
	id := source.QuoteIdentifier(src.IDColumn())

	return fmt.Sprintf(`
		SELECT %s AS group_key, COUNT(*) AS cnt, MAX(%s) AS max_id
		FROM %s
		WHERE %s > $1
		GROUP BY %s
		ORDER BY cnt DESC
	`, groupKeyExpr(group), id, source.QuoteIdentifier(src.Name()), id, group), nil
}

// buildMaxIDQuery returns the current maximum id (0 when empty).
func buildMaxIDQuery(src source.Validated) (string, error) {
	if src.Kind() != source.IDWindowed {
		return "", fmt.Errorf("source %s: max id query needs an id-windowed source, got %q", src.Name(), src.Kind())
	}
	return fmt.Sprintf(`SELECT COALESCE(MAX(%s), 0) FROM %s`,
		source.QuoteIdentifier(src.IDColumn()), source.QuoteIdentifier(src.Name())), nil
}

// buildCountClassifiedQuery counts rows in [$1, $2) grouped by every group column and
// by whether the correlation column is present and non-empty.
func buildCountClassifiedQuery(src source.Validated) (string, error) {
	if src.Kind() != source.Classified {
		return "", fmt.Errorf("source %s: classified query needs a classified source, got %q", src.Name(), src.Kind())
	}
	cols := src.GroupColumns()
	keys := make([]string, len(cols))
	groups := make([]string, len(cols))
	for i, c := range cols {
		quoted := source.QuoteIdentifier(c)
		keys[i] = fmt.Sprintf("%s AS k%d", groupKeyExpr(quoted), i)
		groups[i] = quoted
	}
	corr := source.QuoteIdentifier(src.CorrelationColumn())
	date := source.QuoteIdentifier(src.DateColumn())

	return fmt.Sprintf(`
		SELECT %s,
			(%s IS NOT NULL AND CAST(%s AS TEXT) <> '') AS processed,
			COUNT(*) AS cnt
		FROM %s
		WHERE %s >= $1 AND %s < $2
		GROUP BY %s, processed
		ORDER BY processed DESC, cnt DESC
	`, strings.Join(keys, ", "), corr, corr, source.QuoteIdentifier(src.Name()), date, date, strings.Join(groups, ", ")), nil
}

func groupKeyExpr(quotedColumn string) string {
	return fmt.Sprintf("COALESCE(CAST(%s AS TEXT), 'N/A')", quotedColumn)
}

// Run history queries.
const (
	queryInsertRun = `
		INSERT INTO monitor_runs (
			id, job, started_at, finished_at, from_time, to_time,
			total_count, failed_sources, delivered, error
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	queryRecentRuns = `
		SELECT
			id, job, started_at, finished_at, from_time, to_time,
			total_count, failed_sources, delivered, error
		FROM monitor_runs
		WHERE ($1::text = '' OR job = $1)
		ORDER BY started_at DESC
		LIMIT $2
	`
)
