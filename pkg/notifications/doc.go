// Package notifications delivers best-effort email and push messages out
// of band.
//
// The request path only enqueues. A bounded queue feeds a worker pool;
// when the queue is full the notification is dropped with a warning rather
// than blocking the caller. Delivery failures are retried with exponential
// backoff and never surface to the operation that triggered them.
package notifications
