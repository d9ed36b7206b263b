// Package logger builds the service's *slog.Logger.
//
// New applies functional options (format, level, static attributes, context
// extractors) and wraps the resulting handler with LogHandlerDecorator so that
// request-scoped values such as the request id are attached to every record
// logged with a context.
//
// Attribute helpers (Error, UserID, SubscriptionID, EventID, ...) keep key names
// consistent across the billing packages:
//
//	log := logger.New(logger.WithEnvironment("production", "billingd"))
//	log.InfoContext(ctx, "subscription activated",
//		logger.SubscriptionID(sub.ID),
//		logger.ProviderSubscriptionID(sub.ProviderSubscriptionID),
//	)
package logger
