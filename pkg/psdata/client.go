package psdata

import "context"

// Client is the caller-facing surface of the API client.
//
// Operations follow the library's error policy: an unsuccessful remote call
// is never surfaced as an error value. Reads degrade to an empty record set
// (or zero count) with a logged error; bulk writes return the input rows
// annotated with ColumnResponseStatusCode and ColumnResponseText so the
// caller can inspect per-row outcomes.
type Client interface {
	// Connected reports whether the session holds a bearer token. An
	// unconnected client performs no network calls and every operation
	// degrades to its empty result.
	Connected() bool

	// Close releases the session's underlying connection pool. It must be
	// called exactly once when the client is discarded.
	Close()

	// SetQueryPrefix sets the dot-separated namespace prepended to names
	// passed to RunQuery. It should not end with a period.
	SetQueryPrefix(prefix string)

	// RunQuery runs the named PowerQuery and returns its records. Field
	// names are prefixed with "<table>." to avoid collisions across joined
	// tables. Parameters, when non-empty, are sent as the JSON request body.
	RunQuery(ctx context.Context, name string, parameters map[string]any) *RecordSet

	// GetRecord retrieves a single record by ID. Projection is a
	// comma-separated field list; empty means all fields.
	GetRecord(ctx context.Context, table, recordID, projection string) *RecordSet

	// GetRecords retrieves the records matching the query expression.
	GetRecords(ctx context.Context, table, queryExpression string, opts *TableReadOptions) *RecordSet

	// GetRecordCount returns the number of records matching the query
	// expression.
	GetRecordCount(ctx context.Context, table, queryExpression string) int

	// InsertRecords inserts every row of the set, one call per row. Success
	// per row is status 200.
	InsertRecords(ctx context.Context, table string, records *RecordSet) *RecordSet

	// UpdateRecords updates every row of the set, addressed by the value in
	// idColumn. The whole operation is rejected before any network call if
	// idColumn is not in the set's schema. Success per row is status 200.
	UpdateRecords(ctx context.Context, table, idColumn string, records *RecordSet) *RecordSet

	// DeleteRecord deletes a single record by ID. A 404 is treated as
	// success: the target is already absent.
	DeleteRecord(ctx context.Context, table, recordID string) bool

	// DeleteRecords deletes every row of the set, addressed by the value in
	// idColumn. Success per row is status 204 or 404.
	DeleteRecords(ctx context.Context, table, idColumn string, records *RecordSet) *RecordSet

	// GetStudent retrieves a student's core record from the students
	// resource, flattened to a single row.
	GetStudent(ctx context.Context, studentID int) *RecordSet

	// GetStudentExpansions returns the expansion names available on the
	// student resource.
	GetStudentExpansions(ctx context.Context, studentID int) []string
}
