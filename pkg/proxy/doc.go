// Package proxy holds the HTTP plumbing shared by the Tollbooth handlers:
// request decoding, error mapping and response writing.
//
// # Subpackages
//
//   - handlers: completions, embeddings, models and budget endpoints
//   - middleware: request id, panic recovery, access logging, tracing, secret checks
//   - types: OpenAI-compatible request and error bodies
//
// # Request Flow
//
//  1. ReadBody reads the body up to the configured limit
//  2. DecodeRequest decodes it into a typed request and validates it (400)
//  3. The admission pipeline reserves the worst-case cost
//  4. For streamed chat requests, InjectIncludeUsage sets
//     stream_options.include_usage so the provider reports usage
//  5. The original bytes are forwarded; the provider's response is passed
//     through unmodified with WriteUpstreamResponse or as SSE
//
// # Error Handling
//
// HandleError maps every error the pipeline or a provider can return to an
// OpenAI-style body and status:
//
//	{
//	  "error": {
//	    "message": "budget exhausted: $0.0000 available, $0.0042 required",
//	    "type": "insufficient_quota",
//	    "code": "insufficient_budget"
//	  }
//	}
//
// Budget exhaustion is 402, a missing or unpriced route 503, an upstream
// failure 502 (with Retry-After passed through), and an invariant violation
// 500. Provider messages are passed on; secrets never are.
package proxy
