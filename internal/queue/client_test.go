package queue

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startRedis runs a throwaway Redis; skipped with -short or without Docker.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb, err := Dial(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func TestClientEnqueueProcess(t *testing.T) {
	rdb := startRedis(t)
	c := NewClient(rdb, Config{Stream: "test:ingest", Group: "workers", Block: 200 * time.Millisecond}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, c.EnsureGroup(ctx))
	require.NoError(t, c.EnsureGroup(ctx), "group creation is idempotent")

	first, second := validTask(), validTask()
	second.JobID = "job-2"
	for _, task := range []Task{first, second} {
		_, err := c.Enqueue(ctx, task)
		require.NoError(t, err)
	}
	_, err := c.Enqueue(ctx, Task{JobID: "incomplete"})
	require.Error(t, err)

	var (
		mu   sync.Mutex
		seen []string
	)
	procCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- c.Process(procCtx, "consumer-1", func(ctx context.Context, task Task) error {
			mu.Lock()
			seen = append(seen, task.JobID)
			n := len(seen)
			mu.Unlock()
			if n == 2 {
				stop()
				return errors.New("handler failure is still acked")
			}
			return nil
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("Process did not return")
	}

	assert.Equal(t, []string{"job-1", "job-2"}, seen)
	pending, err := c.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
	n, err := c.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
