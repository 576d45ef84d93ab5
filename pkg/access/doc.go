// Package access resolves what a user may do on a permit.
//
// The role to capability mapping is constant data fixed at compile time.
// Resolution loads the permit creator and the caller's party membership in
// a single read so a concurrent role change can never produce a decision
// built from two different snapshots. Unknown role strings degrade to the
// viewer capability set rather than erroring.
package access
