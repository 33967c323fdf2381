// Package auth signs and verifies API requests with RSA-PSS.
//
// A request is signed over timestamp_ms + METHOD + path (no query string).
// The key id, timestamp and base64 signature travel in the X-Market-Key,
// X-Market-Timestamp and X-Market-Signature headers.
package auth
