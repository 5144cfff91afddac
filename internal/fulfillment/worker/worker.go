package worker

import (
	"context"
	"time"

	"github.com/smallbiznis/giftpact/internal/config"
	fulfillmentdomain "github.com/smallbiznis/giftpact/internal/fulfillment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const retryDelay = 30 * time.Second

type Params struct {
	fx.In

	LC  fx.Lifecycle
	Log *zap.Logger
	Cfg config.Config
	Svc fulfillmentdomain.Service
}

// Worker drains settled sessions into gift card issuance on a single
// background goroutine. Sessions with retryable rows are re-enqueued after a
// delay; per-row attempt counts bound the loop.
type Worker struct {
	log      *zap.Logger
	svc      fulfillmentdomain.Service
	sessions chan string
	done     chan struct{}
}

func NewWorker(p Params) fulfillmentdomain.Queue {
	size := p.Cfg.FulfillmentQueueSize
	if size <= 0 {
		size = 1
	}
	w := &Worker{
		log:      p.Log.Named("fulfillment.worker"),
		svc:      p.Svc,
		sessions: make(chan string, size),
		done:     make(chan struct{}),
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.LC.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go w.run(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-w.done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
	return w
}

func (w *Worker) Enqueue(sessionID string) {
	select {
	case w.sessions <- sessionID:
	default:
		// Dropped sessions stay eligible and are swept by the manual
		// process endpoint.
		w.log.Warn("fulfillment queue full, dropping session", zap.String("session_id", sessionID))
	}
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-ctx.Done():
			return
		case sessionID := <-w.sessions:
			result, err := w.svc.ProcessSession(ctx, sessionID)
			if err != nil {
				w.log.Error("process session", zap.Error(err), zap.String("session_id", sessionID))
				w.requeue(ctx, sessionID)
				continue
			}
			w.log.Info("session processed",
				zap.String("session_id", sessionID),
				zap.Int("fulfilled", result.Fulfilled),
				zap.Int("failed", result.Failed),
				zap.Int("retryable", result.Retryable),
			)
			if result.Retryable > 0 {
				w.requeue(ctx, sessionID)
			}
		}
	}
}

func (w *Worker) requeue(ctx context.Context, sessionID string) {
	timer := time.AfterFunc(retryDelay, func() {
		w.Enqueue(sessionID)
	})
	go func() {
		<-ctx.Done()
		timer.Stop()
	}()
}
