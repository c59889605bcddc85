// Package repo implements the data persistence layer for bot entities,
// backed by GORM. This file exposes the raw SQL escape hatch used by
// developer-only diagnostic commands. Statements run with full privileges;
// arguments are bound positionally when given, nothing else is sanitized.
package repo

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// ExecuteNonQuery runs a statement and returns the number of affected rows.
func ExecuteNonQuery(ctx context.Context, db *gorm.DB, query string, args ...any) (int64, error) {
	res := db.WithContext(ctx).Exec(query, args...)
	if res.Error != nil {
		return 0, storageErr("exec", "", res.Error)
	}
	return res.RowsAffected, nil
}

// ExecuteQuery runs a query and renders the result as text: one header line
// of column names followed by one line per row, every cell followed by " - ".
func ExecuteQuery(ctx context.Context, db *gorm.DB, query string, args ...any) (string, error) {
	rows, err := db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return "", storageErr("query", "", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", storageErr("query", "", err)
	}

	var b strings.Builder
	for _, c := range cols {
		b.WriteString(c)
		b.WriteString(" - ")
	}
	b.WriteString("\n")

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return "", storageErr("query", "", err)
		}
		for _, v := range vals {
			b.WriteString(formatCell(v))
			b.WriteString(" - ")
		}
		b.WriteString("\n")
	}
	if err := rows.Err(); err != nil {
		return "", storageErr("query", "", err)
	}
	return b.String(), nil
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
