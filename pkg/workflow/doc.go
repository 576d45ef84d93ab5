// Package workflow holds the milestone blueprints and the per-permit
// milestone sequence.
//
// Templates are blueprints only. Applying one copies its steps into
// milestones owned by the permit, so later template edits never touch
// permits that already instantiated them. Milestone ordering is a sparse
// integer sort order that is never renumbered on delete.
package workflow
