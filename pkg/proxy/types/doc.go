// Package types defines the JSON bodies of the proxy's HTTP surface.
//
// Completion and embedding requests are decoded only as far as admission
// needs: the model, the stream flag and the output token bounds. Messages
// and every other field stay opaque and are forwarded byte for byte.
//
// Errors use the OpenAI envelope, extended with a hint and the upstream
// status for failures that came from a provider:
//
//	{"error":{"message":"...","type":"upstream_error","code":"provider_error",
//	          "hint":"rate_limited","upstream_status":429}}
//
// The error type selects the HTTP status; see ErrorDetail.HTTPStatusCode.
package types
