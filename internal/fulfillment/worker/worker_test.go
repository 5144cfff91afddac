package worker

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/giftpact/internal/config"
	fulfillmentdomain "github.com/smallbiznis/giftpact/internal/fulfillment/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

type serviceStub struct {
	processed chan string
}

func (s *serviceStub) ProcessSession(ctx context.Context, sessionID string) (fulfillmentdomain.BatchResult, error) {
	s.processed <- sessionID
	return fulfillmentdomain.BatchResult{Fulfilled: 1}, nil
}

func (s *serviceStub) ProcessPending(ctx context.Context) (fulfillmentdomain.BatchResult, error) {
	return fulfillmentdomain.BatchResult{}, nil
}

func TestWorkerDrainsQueue(t *testing.T) {
	stub := &serviceStub{processed: make(chan string, 4)}
	lc := fxtest.NewLifecycle(t)

	queue := NewWorker(Params{
		LC:  lc,
		Log: zap.NewNop(),
		Cfg: config.Config{FulfillmentQueueSize: 4},
		Svc: stub,
	})

	lc.RequireStart()
	defer lc.RequireStop()

	queue.Enqueue("cs_test_1")
	queue.Enqueue("cs_test_2")

	select {
	case sessionID := <-stub.processed:
		require.Equal(t, "cs_test_1", sessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not process first session")
	}
	select {
	case sessionID := <-stub.processed:
		require.Equal(t, "cs_test_2", sessionID)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not process second session")
	}
}

func TestEnqueueDropsWhenFull(t *testing.T) {
	stub := &serviceStub{processed: make(chan string, 1)}
	lc := fxtest.NewLifecycle(t)

	queue := NewWorker(Params{
		LC:  lc,
		Log: zap.NewNop(),
		Cfg: config.Config{FulfillmentQueueSize: 1},
		Svc: stub,
	})

	// Never started, so the channel fills and further sends are dropped
	// without blocking.
	queue.Enqueue("cs_test_1")
	done := make(chan struct{})
	go func() {
		queue.Enqueue("cs_test_2")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("enqueue blocked on full queue")
	}
}
