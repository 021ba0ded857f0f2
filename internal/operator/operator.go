// Package operator implements the physical operator set of spec §4.7: the
// leaf and composite nodes an execution-model adapter drives to turn an
// OptimizedPlan into a QueryResult. Every operator exposes a uniform
// Execute(ctx) so adapters can compose them without knowing concrete types,
// following the teacher's processor convention of a narrow interface plus
// many small, independently testable implementations.
package operator

import (
	"context"

	"github.com/database-intelligence/sqlexec/pkg/types"
)

// Operator is the common shape every physical node satisfies. Children are
// held by the composite operator itself (as Operator values), mirroring the
// plan tree's owned-by-value discipline one level up.
type Operator interface {
	Execute(ctx context.Context) (*types.QueryResult, error)
}

// Predicate is the opaque boolean expression Filter evaluates per row. Its
// language is out of scope at this layer; callers supply a closure.
type Predicate func(columns []string, row types.Row) bool
