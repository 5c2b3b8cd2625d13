package rdb

import (
	"fmt"
	"sort"
	"strings"
)

// Statement builders. Columns are always emitted in sorted order so the
// generated SQL is deterministic for a given input.

func sortedColumns(m Row) []string {
	cols := make([]string, 0, len(m))
	for k := range m {
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols
}

// buildWhere renders "col1 = $n AND col2 = $n+1" with placeholders starting
// at startIdx. An empty map renders an empty clause.
func buildWhere(where Row, startIdx int) (string, []any) {
	if len(where) == 0 {
		return "", nil
	}
	cols := sortedColumns(where)
	conds := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols))
	for i, col := range cols {
		conds = append(conds, fmt.Sprintf("%s = $%d", col, startIdx+i))
		args = append(args, where[col])
	}
	return strings.Join(conds, " AND "), args
}

func buildSelect(table string, where Row, limit int) (string, []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM %s", table)

	clause, args := buildWhere(where, 1)
	if clause != "" {
		sb.WriteString(" WHERE ")
		sb.WriteString(clause)
	}
	if limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", limit)
	}
	return sb.String(), args
}

func buildInsert(table string, rows []Row) (string, []any, error) {
	cols := sortedColumns(rows[0])
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no columns", table)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))

	args := make([]any, 0, len(rows)*len(cols))
	for i, row := range rows {
		if len(row) != len(cols) {
			return "", nil, fmt.Errorf("insert into %s: row %d has %d columns, want %d", table, i, len(row), len(cols))
		}
		placeholders := make([]string, len(cols))
		for j, col := range cols {
			v, ok := row[col]
			if !ok {
				return "", nil, fmt.Errorf("insert into %s: row %d missing column %q", table, i, col)
			}
			placeholders[j] = fmt.Sprintf("$%d", len(args)+1)
			args = append(args, v)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "(%s)", strings.Join(placeholders, ", "))
	}
	return sb.String(), args, nil
}

func buildUpsert(table string, rows []Row, conflictCols, updateCols []string, doNothing bool) (string, []any, error) {
	if len(conflictCols) == 0 {
		return "", nil, fmt.Errorf("upsert into %s: no conflict columns", table)
	}

	insert, args, err := buildInsert(table, rows)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(insert)
	fmt.Fprintf(&sb, " ON CONFLICT (%s) DO ", strings.Join(conflictCols, ", "))

	if doNothing {
		sb.WriteString("NOTHING")
		return sb.String(), args, nil
	}

	if updateCols == nil {
		conflict := make(map[string]bool, len(conflictCols))
		for _, c := range conflictCols {
			conflict[c] = true
		}
		for _, col := range sortedColumns(rows[0]) {
			if !conflict[col] {
				updateCols = append(updateCols, col)
			}
		}
	}
	if len(updateCols) == 0 {
		return "", nil, fmt.Errorf("upsert into %s: no columns to update", table)
	}

	sets := make([]string, 0, len(updateCols))
	for _, col := range updateCols {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
	}
	sb.WriteString("UPDATE SET ")
	sb.WriteString(strings.Join(sets, ", "))
	return sb.String(), args, nil
}

func buildUpdate(table string, values, where Row) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("update %s: no values", table)
	}
	if len(where) == 0 {
		return "", nil, fmt.Errorf("update %s: refusing to update without a where clause", table)
	}

	cols := sortedColumns(values)
	sets := make([]string, 0, len(cols))
	args := make([]any, 0, len(cols)+len(where))
	for i, col := range cols {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, i+1))
		args = append(args, values[col])
	}

	clause, whereArgs := buildWhere(where, len(args)+1)
	args = append(args, whereArgs...)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", table, strings.Join(sets, ", "), clause)
	return query, args, nil
}

func buildDelete(table string, where Row) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, fmt.Errorf("delete from %s: refusing to delete without a where clause", table)
	}
	clause, args := buildWhere(where, 1)
	return fmt.Sprintf("DELETE FROM %s WHERE %s", table, clause), args, nil
}
