package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Task is one ingestion request.
type Task struct {
	ReaderID          string    `json:"readerId"`
	JobID             string    `json:"jobId"`
	TransientFileName string    `json:"transientFileName"`
	TargetID          string    `json:"targetDocumentId"`
	EnqueuedAt        time.Time `json:"enqueuedAt"`
}

// Validate checks that every reference is present.
func (t Task) Validate() error {
	switch {
	case t.JobID == "":
		return fmt.Errorf("task: missing job id")
	case t.ReaderID == "":
		return fmt.Errorf("task: missing reader id")
	case t.TransientFileName == "":
		return fmt.Errorf("task: missing transient file name")
	case t.TargetID == "":
		return fmt.Errorf("task: missing target document id")
	}
	return nil
}

func encodeTask(t Task) (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode task: %w", err)
	}
	return string(b), nil
}

func decodeTask(values map[string]interface{}) (Task, error) {
	raw, ok := values[payloadField].(string)
	if !ok {
		return Task{}, fmt.Errorf("message has no %q field", payloadField)
	}
	var t Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		return Task{}, fmt.Errorf("failed to decode task: %w", err)
	}
	return t, t.Validate()
}
