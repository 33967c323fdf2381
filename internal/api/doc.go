// Package api exposes the registry and marketplace over HTTP and provides a
// Go client for it.
//
// Routes:
//   - POST /v1/tracks, POST /v1/tracks/batch
//   - GET  /v1/tracks/{id}, /v1/tracks/{id}/name, /v1/tracks/{id}/balances/{holder}
//   - GET  /v1/listings, /v1/listings/{id}
//   - POST /v1/listings, /v1/listings/{id}/buy, /v1/listings/{id}/cancel
//   - GET  /v1/events?since=&limit=
//   - GET  /health
//
// The caller is named by the X-Caller header and the attached payment by
// X-Payment (decimal minor units). Failures return
// {"error": {"code": ..., "message": ...}} where code is one of the model
// error codes.
package api
