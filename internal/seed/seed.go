// Package seed loads idempotent seed data and renders it as SQL for psql.
package seed

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sweetstyle/opsrun/internal/security"
	"gopkg.in/yaml.v3"
)

// File is a seed file.
type File struct {
	Database string  `yaml:"database,omitempty"`
	Tables   []Table `yaml:"tables"`
}

// Table holds the rows inserted into one table. Rows that collide on the
// Conflict column are left untouched.
type Table struct {
	Name     string          `yaml:"name"`
	Conflict string          `yaml:"conflict,omitempty"`
	Columns  []string        `yaml:"columns"`
	Rows     [][]interface{} `yaml:"rows"`
}

// Load reads and validates a seed file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("invalid seed file %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks identifiers, row widths and that every id column holds a
// UUID.
func (f *File) Validate() error {
	if f.Database != "" {
		if err := security.ValidateIdentifier(f.Database); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if len(f.Tables) == 0 {
		return fmt.Errorf("no tables defined")
	}

	for _, t := range f.Tables {
		if err := security.ValidateIdentifier(t.Name); err != nil {
			return fmt.Errorf("table: %w", err)
		}
		if len(t.Columns) == 0 {
			return fmt.Errorf("table %s: no columns", t.Name)
		}

		idCol := -1
		seen := make(map[string]bool, len(t.Columns))
		for i, col := range t.Columns {
			if err := security.ValidateIdentifier(col); err != nil {
				return fmt.Errorf("table %s: column: %w", t.Name, err)
			}
			if seen[col] {
				return fmt.Errorf("table %s: duplicate column %s", t.Name, col)
			}
			seen[col] = true
			if col == "id" {
				idCol = i
			}
		}
		if t.Conflict != "" && !seen[t.Conflict] {
			return fmt.Errorf("table %s: conflict column %s is not in columns", t.Name, t.Conflict)
		}

		for r, row := range t.Rows {
			if len(row) != len(t.Columns) {
				return fmt.Errorf("table %s: row %d has %d values, expected %d", t.Name, r+1, len(row), len(t.Columns))
			}
			for c, v := range row {
				if _, err := literal(v); err != nil {
					return fmt.Errorf("table %s: row %d column %s: %w", t.Name, r+1, t.Columns[c], err)
				}
			}
			if idCol >= 0 {
				s, ok := row[idCol].(string)
				if !ok {
					return fmt.Errorf("table %s: row %d: id must be a UUID string", t.Name, r+1)
				}
				if _, err := uuid.Parse(s); err != nil {
					return fmt.Errorf("table %s: row %d: invalid id %q: %w", t.Name, r+1, s, err)
				}
			}
		}
	}
	return nil
}

// TableNames returns the table names in file order.
func (f *File) TableNames() []string {
	names := make([]string, 0, len(f.Tables))
	for _, t := range f.Tables {
		names = append(names, t.Name)
	}
	return names
}

// SQL renders every table as one INSERT statement. Tables without rows are
// skipped.
func (f *File) SQL() (string, error) {
	var sb strings.Builder
	for _, t := range f.Tables {
		if len(t.Rows) == 0 {
			continue
		}
		stmt, err := t.SQL()
		if err != nil {
			return "", err
		}
		sb.WriteString(stmt)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

// SQL renders the table's INSERT statement.
func (t Table) SQL() (string, error) {
	var sb strings.Builder
	columns := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = quoteIdent(c)
	}
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES\n", quoteIdent(t.Name), strings.Join(columns, ", "))

	for r, row := range t.Rows {
		values := make([]string, len(row))
		for c, v := range row {
			lit, err := literal(v)
			if err != nil {
				return "", fmt.Errorf("table %s: row %d: %w", t.Name, r+1, err)
			}
			values[c] = lit
		}
		sb.WriteString("(" + strings.Join(values, ", ") + ")")
		if r < len(t.Rows)-1 {
			sb.WriteString(",\n")
		} else {
			sb.WriteString("\n")
		}
	}

	if t.Conflict != "" {
		fmt.Fprintf(&sb, "ON CONFLICT (%s) DO NOTHING;\n", quoteIdent(t.Conflict))
	} else {
		sb.WriteString("ON CONFLICT DO NOTHING;\n")
	}
	return sb.String(), nil
}

// literal renders a YAML scalar as a SQL literal.
func literal(v interface{}) (string, error) {
	switch val := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		if val {
			return "true", nil
		}
		return "false", nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case uint64:
		return strconv.FormatUint(val, 10), nil
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return "", fmt.Errorf("unsupported number %v", val)
		}
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'", nil
	default:
		return "", fmt.Errorf("unsupported value of type %T", v)
	}
}
