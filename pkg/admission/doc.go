// Package admission decides whether a request may be forwarded and owns the
// money it reserves while it is in flight.
//
// A request moves through these stages:
//
//	Authenticating -> Routing -> Reserving -> Forwarding -> Settling
//	                                              \-> Releasing
//
// Admit covers the first three. It checks the internal secret in constant
// time, routes the model, prices a worst-case ceiling and reserves it in
// the ledger. The handler forwards the request using Admission.Provider and
// then calls exactly one of:
//
//   - Settle, with the usage the provider reported. The usage is priced as
//     the admitted model, whatever model name the provider echoes back.
//   - Release, when the provider failed or reported no usage. A cost is
//     never guessed.
//
// Close is deferred right after Admit and releases the hold if neither ran,
// which covers client disconnects and panics.
//
//	adm, err := pipeline.Admit(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer adm.Close()
//
// # Ceilings
//
// The ceiling is the input estimate (payload bytes divided by
// BytesPerToken, rounded up) at the input price plus the requested maximum
// output at the output price, rounded up to the next minor unit and never
// below MinCeiling. Over-estimating only delays admission for a user near
// their limit; under-estimating would let concurrent requests overspend.
//
// # Invariant violations
//
// A settle or release that finds no hold for its token is a bug. It is
// logged at error level, counted, raised on the Alarm and returned as
// ErrInvariantViolation. Other users' balances are never touched.
package admission
