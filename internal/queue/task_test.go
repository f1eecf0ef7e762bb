package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTask() Task {
	return Task{ReaderID: "reader-1", JobID: "job-1", TransientFileName: "uploads/abc.epub", TargetID: "pub-1"}
}

func TestTaskValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Task)
		ok     bool
	}{
		{"valid", func(*Task) {}, true},
		{"no job", func(t *Task) { t.JobID = "" }, false},
		{"no reader", func(t *Task) { t.ReaderID = "" }, false},
		{"no file", func(t *Task) { t.TransientFileName = "" }, false},
		{"no target", func(t *Task) { t.TargetID = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := validTask()
			tt.mutate(&task)
			err := task.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestDecodeTask(t *testing.T) {
	task := validTask()
	task.EnqueuedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	payload, err := encodeTask(task)
	require.NoError(t, err)
	assert.Contains(t, payload, `"targetDocumentId":"pub-1"`)

	got, err := decodeTask(map[string]interface{}{payloadField: payload})
	require.NoError(t, err)
	assert.Equal(t, task, got)

	_, err = decodeTask(map[string]interface{}{})
	assert.Error(t, err)
	_, err = decodeTask(map[string]interface{}{payloadField: "{not json"})
	assert.Error(t, err)
	_, err = decodeTask(map[string]interface{}{payloadField: `{"jobId":"j"}`})
	assert.Error(t, err)
}
