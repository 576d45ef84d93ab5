// Package async provides panic-safe goroutine helpers and a bounded worker
// pool. Side-effect work (notification delivery, reminder fan-out) runs
// through this package so failures stay observable instead of crashing the
// request path.
package async
