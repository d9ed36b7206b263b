// Package notify delivers subscription notifications as emails.
//
// QueueNotifier implements billing.Notifier by enqueueing one task per
// notification on a pkg/queue Enqueuer. Mailer.Handlers consumes those
// tasks on a queue Worker, resolving the subscriber's address and sending
// the rendered message through pkg/email.
//
//	enq, _ := queue.NewEnqueuer(storage)
//	rec := billing.NewReconciler(..., billing.WithNotifier(notify.NewQueueNotifier(enq)))
//
//	worker, _ := queue.NewWorker(storage)
//	mailer := notify.NewMailer(users, plans, sender, supportEmail, log)
//	_ = worker.RegisterHandlers(mailer.Handlers()...)
package notify
