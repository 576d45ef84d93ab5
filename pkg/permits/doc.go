// Package permits holds the permit aggregate: the permit record itself,
// its party memberships, and the permission-gated facade every mutating
// boundary operation goes through.
//
// The facade runs a fixed pipeline: resolve access, check the operation's
// required capability, perform the state change, append one activity
// record, then hand best-effort notifications to the dispatcher. A denial
// short-circuits before any state change and leaves no trail entry.
package permits
