package queue

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"DemandCast/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	ProductID int64 `json:"productId"`
	Horizon   int   `json:"horizon"`
}

type countingJob struct {
	calls   atomic.Int32
	failFor int32
	got     chan testPayload
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Type() string { return "test.count" }

func (j *countingJob) Handle(_ context.Context, payload interface{}) error {
	n := j.calls.Add(1)
	if n <= j.failFor {
		return errors.New("transient")
	}
	p, err := ParsePayload[testPayload](payload)
	if err != nil {
		return err
	}
	j.got <- *p
	return nil
}

func TestParsePayload(t *testing.T) {
	raw := json.RawMessage(`{"productId":3,"horizon":14}`)
	p, err := ParsePayload[testPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, testPayload{ProductID: 3, Horizon: 14}, *p)

	p, err = ParsePayload[testPayload](map[string]interface{}{"productId": 4})
	require.NoError(t, err)
	assert.Equal(t, int64(4), p.ProductID)

	p, err = ParsePayload[testPayload](testPayload{ProductID: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), p.ProductID)

	_, err = ParsePayload[testPayload](42)
	assert.Error(t, err)
}

func TestLocalQueueRetriesThenDelivers(t *testing.T) {
	job := &countingJob{failFor: 1, got: make(chan testPayload, 1)}
	q := NewLocalQueue(logger.Nop(), &QueueConfig{Workers: 1, RetryLimit: 2, RetryDelay: time.Millisecond}, job)
	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	require.NoError(t, q.PublishMessage(context.Background(), "test.count", testPayload{ProductID: 9, Horizon: 7}))

	select {
	case p := <-job.got:
		assert.Equal(t, int64(9), p.ProductID)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not delivered")
	}
	assert.Equal(t, int32(2), job.calls.Load())
}

func TestLocalQueueRejects(t *testing.T) {
	job := &countingJob{got: make(chan testPayload, 1)}
	q := NewLocalQueue(logger.Nop(), nil, job)

	assert.ErrorIs(t, q.PublishMessage(context.Background(), "test.count", testPayload{}), ErrNotRunning)

	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })
	assert.Error(t, q.PublishMessage(context.Background(), "unknown", testPayload{}))
	assert.Error(t, q.Start())
}

func TestLocalQueueRegisterJobAfterConstruction(t *testing.T) {
	q := NewLocalQueue(logger.Nop(), &QueueConfig{Workers: 2})
	job := &countingJob{got: make(chan testPayload, 1)}
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	t.Cleanup(func() { _ = q.Stop(context.Background()) })

	require.NoError(t, q.PublishMessage(context.Background(), job.Type(), testPayload{ProductID: 1}))
	select {
	case p := <-job.got:
		assert.Equal(t, int64(1), p.ProductID)
	case <-time.After(2 * time.Second):
		t.Fatal("job was not delivered")
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	c := (&QueueConfig{RetryDelay: time.Second}).withDefaults()
	assert.Equal(t, time.Second, c.backoff(1))
	assert.Equal(t, 2*time.Second, c.backoff(2))
	assert.Equal(t, 8*time.Second, c.backoff(4))
	assert.Equal(t, time.Hour, c.backoff(40))
}

func TestConfigDefaultsDoNotMutateCaller(t *testing.T) {
	in := &QueueConfig{Workers: 0}
	out := in.withDefaults()
	assert.Equal(t, 0, in.Workers)
	assert.Equal(t, 1, out.Workers)
	assert.Equal(t, 256, out.QueueSize)
	assert.Equal(t, 10*time.Second, out.RetryDelay)

	assert.Equal(t, 1, (*QueueConfig)(nil).withDefaults().Workers)
}

func TestLocalQueueFull(t *testing.T) {
	block := make(chan struct{})
	job := &blockingJob{release: block}
	q := NewLocalQueue(logger.Nop(), &QueueConfig{Workers: 1, QueueSize: 1}, job)
	require.NoError(t, q.Start())
	t.Cleanup(func() {
		close(block)
		_ = q.Stop(context.Background())
	})

	ctx := context.Background()
	require.NoError(t, q.PublishMessage(ctx, job.Type(), 1))
	require.Eventually(t, func() bool { return job.started.Load() }, time.Second, 5*time.Millisecond)
	require.NoError(t, q.PublishMessage(ctx, job.Type(), 2))
	assert.ErrorIs(t, q.PublishMessage(ctx, job.Type(), 3), ErrQueueFull)

	st, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), st.Pending)
}

type blockingJob struct {
	started atomic.Bool
	release chan struct{}
}

func (j *blockingJob) Name() string { return "blocking" }
func (j *blockingJob) Type() string { return "test.block" }

func (j *blockingJob) Handle(ctx context.Context, _ interface{}) error {
	j.started.Store(true)
	select {
	case <-j.release:
	case <-ctx.Done():
	}
	return nil
}
