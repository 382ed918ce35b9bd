// Package journey holds the per-journey authentication state for the
// sign-in and registration flow: the contact details proven so far, the
// identity attributes the user has declared, the outcome of teacher record
// matching, and the sub-state of the "TRN already in use" conflict branch.
//
// State is mutated only through its transition methods. Each transition
// encodes the milestone it assumes as a precondition, which is what keeps
// the ordering invariants true: a later milestone's fields are never
// populated before the earlier milestone's verification flag is set. The
// furthest milestone reached is always derived from the data itself by
// [State.LastMilestone], never tracked as a separate counter.
package journey
