// Package audit records who did what to which resource.
//
// A Logger builds an Event from the context (actor and request ids through
// extractors) plus per-call options, validates it, and hands it to a Storage.
// Administrative changes attach before/after snapshots with WithChange so a
// reader can reconstruct what was modified.
//
//	l := audit.NewLogger(storage, audit.WithActorExtractor(actorFromCtx))
//	_ = l.Log(ctx, "plan.updated",
//		audit.WithResource("plan", plan.ID.String()),
//		audit.WithChange(before, after))
package audit
