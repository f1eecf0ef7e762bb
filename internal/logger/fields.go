package logger

// Fields is an alias for map[string]interface{} for convenience.
type Fields map[string]interface{}

// Tracing fields carried on the context logger through a request or task.
const (
	// FieldRequestID is the HTTP request ID (UUID)
	FieldRequestID = "request_id"

	// FieldJobID is the ingestion job ID
	FieldJobID = "job_id"

	// FieldReaderID is the owning reader
	FieldReaderID = "reader_id"

	// FieldPublicationID is the root document being ingested
	FieldPublicationID = "publication_id"

	// FieldComponent is the component/module name
	FieldComponent = "component"

	// FieldStage is the worker state machine stage
	FieldStage = "stage"
)

// Metric fields attached per entry, used for aggregation.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	FieldSize       = "size"
	FieldStatus     = "status"
)
