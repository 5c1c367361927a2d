package sqlstore

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"gardener/internal/config"
)

var (
	identRe     = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	referenceRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*\s*\(\s*[A-Za-z_][A-Za-z0-9_]*\s*\)$`)
)

// TableSchema is the caller supplied layout of one table. Column types are
// passed through to the database untouched.
type TableSchema struct {
	Columns     []config.ColumnDef
	ForeignKeys map[string]string // column -> "table(column)"
}

// SchemaFor picks the layout of table out of the configured schema.
func SchemaFor(cfg config.SchemaConfig, table string) TableSchema {
	s := TableSchema{ForeignKeys: cfg.ForeignKeys[table]}
	switch table {
	case ItemsTable:
		s.Columns = cfg.Torrents
	case PatternsTable:
		s.Columns = cfg.Patterns
	}
	return s
}

func (s TableSchema) has(column string) bool {
	return slices.ContainsFunc(s.Columns, func(c config.ColumnDef) bool {
		return c.Name == column
	})
}

func (s TableSchema) createStatement(table string) (string, error) {
	if len(s.Columns) == 0 {
		return "", fmt.Errorf("no columns configured for %s", table)
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE IF NOT EXISTS ")
	sb.WriteString(table)
	sb.WriteString(" (")

	for i, col := range s.Columns {
		if !identRe.MatchString(col.Name) {
			return "", fmt.Errorf("invalid column name %q in %s", col.Name, table)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col.Name)
		if col.DBType != "" {
			sb.WriteString(" ")
			sb.WriteString(col.DBType)
		}
	}

	keys := make([]string, 0, len(s.ForeignKeys))
	for k := range s.ForeignKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, column := range keys {
		ref := s.ForeignKeys[column]
		if !identRe.MatchString(column) || !referenceRe.MatchString(ref) {
			return "", fmt.Errorf("invalid foreign key %s -> %s in %s", column, ref, table)
		}
		sb.WriteString(", FOREIGN KEY (")
		sb.WriteString(column)
		sb.WriteString(") REFERENCES ")
		sb.WriteString(ref)
	}
	sb.WriteString(")")

	return sb.String(), nil
}
