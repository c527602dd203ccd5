package postgres

import (
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
)

// clauseBuilder accumulates AND-ed predicates with positional args.
type clauseBuilder struct {
	alias   string
	clauses []string
	args    []interface{}
}

// newClauseBuilder starts numbering after any fixed args.
func newClauseBuilder(alias string, args ...interface{}) *clauseBuilder {
	return &clauseBuilder{alias: alias, args: args}
}

func (b *clauseBuilder) next() int { return len(b.args) + 1 }

func (b *clauseBuilder) add(format string, arg interface{}) {
	b.clauses = append(b.clauses, fmt.Sprintf(format, b.alias, b.next()))
	b.args = append(b.args, arg)
}

func (b *clauseBuilder) anyOf(column string, values []string) {
	if len(values) == 0 {
		return
	}
	b.add("%s"+column+" = ANY($%d)", pq.Array(values))
}

func (b *clauseBuilder) where() string {
	if len(b.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.clauses, " AND ")
}

func (b *clauseBuilder) limit(n int) string {
	if n <= 0 {
		return ""
	}
	b.args = append(b.args, n)
	return fmt.Sprintf(" LIMIT $%d", len(b.args))
}

// applyGroupFilter adds the organization, location and item predicates.
func (b *clauseBuilder) applyGroupFilter(f domain.AnalyticsFilter) {
	b.anyOf("organization", f.Organizations)
	b.anyOf("location", f.Locations)
	b.anyOf("item", f.Items)
}
