// Package queue is a small persistent task queue.
//
// An Enqueuer serializes a payload to JSON and stores it as a Task named after
// the payload's Go type. A Worker polls storage, claims due tasks, and
// dispatches them to the Handler registered under the same name. Failed tasks
// are retried with exponential backoff until MaxRetries is exhausted, after
// which they stay in storage with status failed for inspection.
//
//	enq, _ := queue.NewEnqueuer(storage)
//	_ = enq.Enqueue(ctx, SendReceipt{PaymentID: id})
//
//	w, _ := queue.NewWorker(storage, queue.WithConcurrency(4))
//	_ = w.RegisterHandlers(queue.NewTaskHandler(func(ctx context.Context, t SendReceipt) error { ... }))
//	go w.Run(ctx)
//
// MemoryStorage serves tests and single-process development; PostgresStorage
// shares work between processes with FOR UPDATE SKIP LOCKED.
package queue
