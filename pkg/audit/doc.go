// Package audit provides the append-only activity trail.
//
// Every successful mutating operation writes exactly one ActivityRecord.
// Records are never updated or deleted. The per-permit feed is ordered by
// creation time descending with the insertion id as tiebreak so records
// created in the same wall-clock instant keep a stable order.
package audit
