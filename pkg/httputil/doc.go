// Package httputil holds the JSON response helpers, request parsing helpers
// and the base middleware chain (request IDs, logging, panic recovery) shared
// by every communityhub HTTP handler.
//
//	var req CreateGroupRequest
//	if !httputil.ParseJSONOrError(w, r, &req) {
//		return // 400 already written
//	}
//	httputil.WriteCreated(w, group)
package httputil
