package vec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/viant/sqlite-hypergraph/index"
	"github.com/viant/sqlite-hypergraph/vector"
)

// ModuleName is the name vec0 tables are declared with:
//
//	CREATE VIRTUAL TABLE embeddings USING vec0(embedding float[384])
const ModuleName = "vec0"

// Config is the parsed argument list of a vec0 table.
type Config struct {
	// Column names the vector column, "embedding" unless declared otherwise.
	Column string
	// Dim is the number of float32 values per vector; 0 accepts any width.
	Dim int
	// Store identifies the database the table lives in, so snapshots of two
	// databases holding a table of the same name never mix.
	Store string
	// Index is the index kind MATCH queries rank with.
	Index index.Kind
	// Metric is the distance used when a query does not constrain metric.
	Metric vector.Metric
}

// Querier is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Shadow returns the regular table that persists the vectors of table.
func Shadow(table string) string { return table + "_vectors" }

// ParseArgs parses vec0 module arguments: one column declaration such as
// "embedding float[384]" plus key=value options (store, index, metric).
func ParseArgs(args []string) (*Config, error) {
	cfg := &Config{Column: "embedding", Index: index.KindAuto, Metric: vector.L2}
	columns := 0
	for _, raw := range args {
		arg := strings.TrimSpace(raw)
		if arg == "" {
			continue
		}
		if key, val, ok := strings.Cut(arg, "="); ok {
			key = strings.ToLower(strings.TrimSpace(key))
			val = unquote(strings.TrimSpace(val))
			switch key {
			case "store":
				cfg.Store = val
			case "index":
				kind, err := index.ParseKind(strings.ToLower(val))
				if err != nil {
					return nil, fmt.Errorf("vec: %w", err)
				}
				cfg.Index = kind
			case "metric":
				metric, err := vector.ParseMetric(strings.ToLower(val))
				if err != nil {
					return nil, fmt.Errorf("vec: %w", err)
				}
				cfg.Metric = metric
			default:
				return nil, fmt.Errorf("vec: unknown option %q", key)
			}
			continue
		}
		columns++
		if columns > 1 {
			return nil, fmt.Errorf("vec: only one vector column is supported, got %q", arg)
		}
		if err := cfg.parseColumn(arg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// parseColumn accepts "name", "name float" or "name float[N]".
func (c *Config) parseColumn(decl string) error {
	fields := strings.Fields(decl)
	name := unquote(fields[0])
	if !validName(name) {
		return fmt.Errorf("vec: invalid column name %q", fields[0])
	}
	c.Column = name
	if len(fields) == 1 {
		return nil
	}
	typ := strings.ToLower(strings.Join(fields[1:], ""))
	if typ == "float" || typ == "blob" {
		return nil
	}
	if !strings.HasPrefix(typ, "float[") || !strings.HasSuffix(typ, "]") {
		return fmt.Errorf("vec: unsupported column type %q, want float[N]", strings.Join(fields[1:], " "))
	}
	dim, err := strconv.Atoi(typ[len("float[") : len(typ)-1])
	if err != nil || dim <= 0 {
		return fmt.Errorf("vec: invalid dimension in %q", decl)
	}
	c.Dim = dim
	return nil
}

// Args renders cfg back into module arguments.
func (c *Config) Args() []string {
	column := c.Column
	if c.Dim > 0 {
		column += fmt.Sprintf(" float[%d]", c.Dim)
	}
	args := []string{column}
	if c.Store != "" {
		args = append(args, "store="+quoteLiteral(c.Store))
	}
	if c.Index != "" && c.Index != index.KindAuto {
		args = append(args, "index="+string(c.Index))
	}
	if c.Metric != "" && c.Metric != vector.L2 {
		args = append(args, "metric="+string(c.Metric))
	}
	return args
}

// Statements returns the DDL declaring table as a vec0 table: the shadow
// table holding the vectors, the triggers dropping cached snapshots on every
// write, and the virtual table itself. Every statement is idempotent.
func Statements(table string, cfg *Config) ([]string, error) {
	if !validName(table) {
		return nil, fmt.Errorf("vec: invalid table name %q", table)
	}
	if !validName(cfg.Column) {
		return nil, fmt.Errorf("vec: invalid column name %q", cfg.Column)
	}
	shadow := Shadow(table)
	check := fmt.Sprintf("typeof(%s) = 'blob'", cfg.Column)
	if cfg.Dim > 0 {
		check += fmt.Sprintf(" AND length(%s) = %d", cfg.Column, cfg.Dim*4)
	}
	stmts := []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  rowid INTEGER PRIMARY KEY,
  %s BLOB NOT NULL CHECK (%s)
)`, shadow, cfg.Column, check)}
	for _, event := range []struct{ suffix, name string }{{"ai", "INSERT"}, {"au", "UPDATE"}, {"ad", "DELETE"}} {
		stmts = append(stmts, fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s_%s AFTER %s ON %s
BEGIN
  SELECT vec_invalidate(%s, %s);
END`, shadow, event.suffix, event.name, shadow, quoteLiteral(cfg.Store), quoteLiteral(table)))
	}
	stmts = append(stmts, fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING %s(%s)", table, ModuleName, strings.Join(cfg.Args(), ", ")))
	return stmts, nil
}

// ReadConfig returns the configuration table was declared with, or nil when
// no vec0 table of that name exists.
func ReadConfig(ctx context.Context, q Querier, table string) (*Config, error) {
	var ddl string
	err := q.QueryRowContext(ctx, "SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&ddl)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("vec: read declaration of %s: %w", table, err)
	}
	args, err := moduleArgs(ddl)
	if err != nil {
		return nil, fmt.Errorf("vec: %s: %w", table, err)
	}
	return ParseArgs(args)
}

// moduleArgs extracts the argument list of a CREATE VIRTUAL TABLE statement
// using the vec0 module.
func moduleArgs(ddl string) ([]string, error) {
	upper := strings.ToUpper(ddl)
	using := strings.Index(upper, " USING ")
	if using < 0 {
		return nil, fmt.Errorf("not a virtual table")
	}
	rest := strings.TrimSpace(ddl[using+len(" USING "):])
	open := strings.IndexByte(rest, '(')
	if open < 0 {
		if !strings.EqualFold(rest, ModuleName) {
			return nil, fmt.Errorf("declared with module %q", rest)
		}
		return nil, nil
	}
	if module := strings.TrimSpace(rest[:open]); !strings.EqualFold(module, ModuleName) {
		return nil, fmt.Errorf("declared with module %q", module)
	}
	end := strings.LastIndexByte(rest, ')')
	if end < open {
		return nil, fmt.Errorf("unbalanced module arguments")
	}
	return splitArgs(rest[open+1 : end]), nil
}

// splitArgs splits on commas outside quotes and brackets.
func splitArgs(s string) []string {
	var (
		args  []string
		depth int
		quote byte
		start int
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '(' || ch == '[':
			depth++
		case ch == ')' || ch == ']':
			depth--
		case ch == ',' && depth == 0:
			args = append(args, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" {
		args = append(args, tail)
	}
	return args
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		q := string(s[0])
		return strings.ReplaceAll(s[1:len(s)-1], q+q, q)
	}
	return s
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// validName accepts plain SQL identifiers, which are interpolated unquoted.
func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
