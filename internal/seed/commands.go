package seed

import (
	"fmt"
	"strings"

	"github.com/sweetstyle/opsrun/internal/security"
)

// Command feeds sql to psql through a quoted heredoc, running as the
// database system user.
func Command(database, systemUser, sql string) (string, error) {
	if err := checkTarget(database, systemUser); err != nil {
		return "", err
	}
	delimiter, err := security.GenerateHeredocDelimiter("SEED")
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(sql, "\n") {
		sql += "\n"
	}
	return fmt.Sprintf("sudo -u %s psql -v ON_ERROR_STOP=1 -d %s <<'%s'\n%s%s",
		systemUser, database, delimiter, sql, delimiter), nil
}

// QueryCommand runs a single psql command.
func QueryCommand(database, systemUser, query string) (string, error) {
	if err := checkTarget(database, systemUser); err != nil {
		return "", err
	}
	return fmt.Sprintf("sudo -u %s psql -d %s -c %s", systemUser, database, security.ShellEscape(query)), nil
}

// ListTablesQuery lists the tables of the public schema.
func ListTablesQuery() string {
	return "SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' ORDER BY table_name;"
}

// CountQuery counts the rows of each table in one result set.
func CountQuery(tables []string) (string, error) {
	if len(tables) == 0 {
		return "", fmt.Errorf("no tables to count")
	}
	parts := make([]string, 0, len(tables))
	for _, t := range tables {
		if err := security.ValidateIdentifier(t); err != nil {
			return "", err
		}
		parts = append(parts, fmt.Sprintf("SELECT '%s' AS table_name, COUNT(*) AS count FROM %s", t, quoteIdent(t)))
	}
	return strings.Join(parts, " UNION ALL ") + ";", nil
}

// DescribeQuery is the psql meta-command showing a table's columns.
func DescribeQuery(table string) (string, error) {
	if err := security.ValidateIdentifier(table); err != nil {
		return "", err
	}
	return `\d ` + quoteIdent(table), nil
}

// quoteIdent double-quotes a validated identifier so reserved words such as
// user or order can be used as table and column names.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

func checkTarget(database, systemUser string) error {
	if err := security.ValidateIdentifier(database); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := security.ValidateUnixUser(systemUser); err != nil {
		return fmt.Errorf("system user: %w", err)
	}
	return nil
}
