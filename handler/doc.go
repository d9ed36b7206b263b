// Package handler provides typed JSON HTTP handlers.
//
// A HandlerFunc receives a Context and a request struct populated by the
// configured binders, and returns a Response:
//
//	type subscribeRequest struct {
//		PlanCode string `json:"plan_code"`
//	}
//
//	func subscribe(ctx handler.Context, req subscribeRequest) handler.Response {
//		session, err := svc.Subscribe(ctx, userID, req.PlanCode)
//		if err != nil {
//			return handler.JSONError(err)
//		}
//		return handler.JSON(session, handler.WithJSONStatus(http.StatusCreated))
//	}
//
//	r.Post("/subscribe", handler.Wrap(subscribe, handler.WithBinders[subscribeRequest](binder.JSON())))
//
// Responses use one envelope, {"data": ...} on success and
// {"error": {"code": ..., "message": ...}} on failure. Errors are turned
// into status codes by an ErrorClassifier; HTTPError values classify
// themselves.
package handler
