package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// fakeReader hands out queued messages and then blocks until ctx ends.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafkaGo.Message
	committed []int64
	onCommit  func(committed int)
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkaGo.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkaGo.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafkaGo.Message) error {
	r.mu.Lock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	n := len(r.committed)
	r.mu.Unlock()
	if r.onCommit != nil {
		r.onCommit(n)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func newTestBroker(reader *fakeReader, logger *zap.Logger) *kafkaBroker {
	return &kafkaBroker{
		logger:    logger,
		newReader: func(topic, groupID string) messageReader { return reader },
		retry:     func() backoff.BackOff { return &backoff.ZeroBackOff{} },
	}
}

func TestConsume_CommitsOnlyAfterHandlerSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{queue: []kafkaGo.Message{
		{Offset: 7, Value: []byte("first")},
		{Offset: 8, Value: []byte("second")},
	}}
	reader.onCommit = func(committed int) {
		if committed == 2 {
			cancel()
		}
	}

	core, logs := observer.New(zapcore.WarnLevel)
	broker := newTestBroker(reader, zap.New(core))

	attempts := map[string]int{}
	broker.Consume(ctx, "payments", "farmmarket", func(ctx context.Context, payload []byte) error {
		attempts[string(payload)]++
		if string(payload) == "first" && attempts["first"] < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	assert.Equal(t, 3, attempts["first"])
	assert.Equal(t, 1, attempts["second"])
	assert.Equal(t, []int64{7, 8}, reader.committed)
	assert.True(t, reader.closed)
	assert.Equal(t, 2, logs.FilterMessage("Error handling message, retrying").Len())
}

func TestConsume_ShutdownLeavesFailingMessageUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{queue: []kafkaGo.Message{{Offset: 3, Value: []byte("stuck")}}}
	broker := newTestBroker(reader, zap.NewNop())

	calls := 0
	broker.Consume(ctx, "fulfillment", "farmmarket", func(ctx context.Context, payload []byte) error {
		calls++
		if calls == 4 {
			cancel()
		}
		return errors.New("transaction failed")
	})

	assert.GreaterOrEqual(t, calls, 4)
	assert.Empty(t, reader.committed)
	assert.True(t, reader.closed)
}
