// Package jobs runs background index maintenance.
package jobs

import (
	"context"
	"log"
	"time"

	"github.com/henrib/lumen/internal/telemetry"
)

// Task is a unit of periodic background work.
type Task interface {
	Name() string
	Run(ctx context.Context) error
}

// Worker runs a task on a fixed interval until stopped.
type Worker struct {
	task     Task
	interval time.Duration
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewWorker creates a Worker for the given task.
func NewWorker(task Task, interval time.Duration) *Worker {
	return &Worker{
		task:     task,
		interval: interval,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
}

// Start begins the polling loop. It blocks until the context is cancelled
// or Stop is called.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	defer close(w.doneChan)

	log.Printf("worker %s started with interval %v", w.task.Name(), w.interval)

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker %s stopped: context cancelled", w.task.Name())
			return
		case <-w.stopChan:
			log.Printf("worker %s stopped: stop signal received", w.task.Name())
			return
		case <-ticker.C:
			if err := w.task.Run(ctx); err != nil {
				log.Printf("worker %s run failed: %v", w.task.Name(), err)
				telemetry.CaptureError(ctx, err)
			}
		}
	}
}

// Stop signals the worker and waits for the loop to exit.
func (w *Worker) Stop() {
	close(w.stopChan)
	<-w.doneChan
	log.Printf("worker %s shutdown complete", w.task.Name())
}
