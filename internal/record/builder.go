package record

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/schooladmin/school-admin/internal"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier rejects names that cannot be used as a table or column.
func ValidIdentifier(name string) error {
	if !identifierPattern.MatchString(name) {
		return internal.NewValidationFieldError(name, "invalid identifier: "+name, internal.ErrCodeInvalidIdentifier)
	}
	return nil
}

// Statement is a finished SQL text and its positional arguments.
type Statement struct {
	SQL  string
	Args []any
}

// Builder accumulates SQL text and arguments together. Bind is the only way
// to add an argument and it hands back the placeholder for that argument, so
// the n-th placeholder always refers to the n-th argument.
type Builder struct {
	sql  strings.Builder
	args []any
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) Write(parts ...string) *Builder {
	for _, p := range parts {
		b.sql.WriteString(p)
	}
	return b
}

// Bind records value and returns its placeholder.
func (b *Builder) Bind(value any) string {
	b.args = append(b.args, value)
	return "$" + strconv.Itoa(len(b.args))
}

// Ident quotes a table or column name.
func (b *Builder) Ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func (b *Builder) Statement() Statement {
	args := b.args
	if args == nil {
		args = []any{}
	}
	return Statement{SQL: b.sql.String(), Args: args}
}

// Order is one ORDER BY term.
type Order struct {
	Column string
	Desc   bool
}

func Asc(column string) Order  { return Order{Column: column} }
func Desc(column string) Order { return Order{Column: column, Desc: true} }

var defaultOrder = []Order{Desc("created_at")}

// writeWhere emits "WHERE a AND b" for the given predicates, or nothing.
func (b *Builder) writeWhere(predicates []string) {
	if len(predicates) == 0 {
		return
	}
	b.Write(" WHERE ", strings.Join(predicates, " AND "))
}

func (b *Builder) equalities(conditions map[string]any) []string {
	preds := make([]string, 0, len(conditions))
	for _, col := range sortedKeys(conditions) {
		v := conditions[col]
		if v == nil {
			preds = append(preds, b.Ident(col)+" IS NULL")
			continue
		}
		preds = append(preds, b.Ident(col)+" = "+b.Bind(v))
	}
	return preds
}

func (b *Builder) writeOrder(order []Order) {
	if len(order) == 0 {
		order = defaultOrder
	}
	terms := make([]string, len(order))
	for i, o := range order {
		dir := "ASC"
		if o.Desc {
			dir = "DESC"
		}
		terms[i] = b.Ident(o.Column) + " " + dir
	}
	b.Write(" ORDER BY ", strings.Join(terms, ", "))
}

func (b *Builder) writePaging(limit, offset *int) {
	if limit != nil {
		b.Write(" LIMIT ", b.Bind(*limit))
	}
	if offset != nil {
		b.Write(" OFFSET ", b.Bind(*offset))
	}
}

// escapeLike makes LIKE wildcards in term match literally.
func escapeLike(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(term)
}
