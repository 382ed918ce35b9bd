// Package idjourney implements the sign-in and registration journey engine
// for the teacher identity service: a resumable, milestone-gated state
// machine that walks an end user through email verification, optional TRN
// self-declaration, teacher record matching, resolution of "TRN already in
// use" conflicts, and final account creation or linking, together with the
// one-time passcode subsystem that gates every identity-proving step.
//
// The package is an embeddable library. Callers construct an [Engine] from
// a [Config] plus injected collaborators (Redis client, teacher record
// source, account store, notification dispatcher) and drive it from their
// page handlers. Engine methods are safe for concurrent use after
// construction; journey state is reloaded fresh from the durable store on
// every request, so no server affinity is assumed.
//
// Outcomes that the embedding HTTP layer must map to responses:
//
//   - [ErrJourneyNotFound], [ErrJourneyExpired], [ErrEmailChoiceRejected]
//     map to HTTP 400 (expired gets its own page so support staff can tell
//     abandonment from tampering).
//   - [ErrPasscodeRateLimited] maps to HTTP 429.
//   - [ErrPasscodeFormat] and passcode verification outcomes are inline
//     field errors on an HTTP 200 page.
//   - Gate redirects ([GateRedirectNextHop], [GateRedirectPostSignIn])
//     map to HTTP 302.
package idjourney
