// Package writer serializes mutations through a single protoactor actor so
// that every read-modify-write of the dataset runs one at a time.
package writer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/asynkron/protoactor-go/actor"
	"go.uber.org/zap"
)

var ErrStopped = errors.New("writer stopped")

// Mutation is one unit of work. It runs on the actor goroutine.
type Mutation func(ctx context.Context) error

type execute struct {
	ctx    context.Context
	fn     Mutation
	result chan error
}

type writerActor struct {
	logger *zap.Logger
}

func (a *writerActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *execute:
		msg.result <- a.run(msg)

	case *actor.Started:
		a.logger.Info("Writer actor started")

	case *actor.Stopping:
		a.logger.Info("Writer actor stopping")

	case *actor.Stopped:
		a.logger.Info("Writer actor stopped")
	}
}

func (a *writerActor) run(msg *execute) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Mutation panicked", zap.Any("panic", r))
			err = fmt.Errorf("mutation panicked: %v", r)
		}
	}()
	return msg.fn(msg.ctx)
}

type Writer struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
	done   chan struct{}
	once   sync.Once
}

func New(logger *zap.Logger) (*Writer, error) {
	system := actor.NewActorSystem()

	props := actor.PropsFromProducer(func() actor.Actor {
		return &writerActor{logger: logger}
	})
	pid, err := system.Root.SpawnNamed(props, "writer")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn writer actor: %w", err)
	}

	return &Writer{
		system: system,
		pid:    pid,
		logger: logger,
		done:   make(chan struct{}),
	}, nil
}

// Do runs fn on the writer and waits for it to finish. Mutations never
// overlap. Once started a mutation runs to completion; the context is only
// consulted before the mutation is queued.
func (w *Writer) Do(ctx context.Context, fn Mutation) error {
	select {
	case <-w.done:
		return ErrStopped
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := &execute{ctx: ctx, fn: fn, result: make(chan error, 1)}
	w.system.Root.Send(w.pid, msg)

	select {
	case err := <-msg.result:
		return err
	case <-w.done:
		return ErrStopped
	}
}

// Stop drains the mailbox of already queued mutations and stops the actor.
func (w *Writer) Stop() {
	w.once.Do(func() {
		if err := w.system.Root.PoisonFuture(w.pid).Wait(); err != nil {
			w.logger.Warn("Writer actor did not stop cleanly", zap.Error(err))
		}
		close(w.done)
	})
}
