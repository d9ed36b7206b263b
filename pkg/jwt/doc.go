// Package jwt issues and verifies HS256 bearer tokens for API callers.
//
// Tokens carry the caller's user id in "sub" and an "adm" flag for
// administrators. Middleware verifies the Authorization header, stores the
// parsed Claims in the request context, and reports failures through a
// configurable error handler so callers can keep their response envelope.
//
//	svc, _ := jwt.NewFromConfig(cfg)
//	token, _ := svc.Issue(userID, false, time.Hour)
//	r.With(jwt.Middleware(svc)).Get("/me", handler)
//	claims, ok := jwt.GetClaims(r.Context())
package jwt
