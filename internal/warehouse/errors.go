package warehouse

import (
	"errors"
	"fmt"
)

// ErrTableNotFound reports a table with no columns in information_schema,
// which is how Redshift-compatible warehouses surface a missing relation to
// a metadata query.
var ErrTableNotFound = errors.New("table not found")

// QueryError wraps a driver failure for one query. Queries are never retried;
// the caller decides whether the failure is fatal for the test, the model,
// or the run.
type QueryError struct {
	Query string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}
