// Package storage manages the platform's data backends: the PostgreSQL
// primary/replica connection pools, the Redis client used by the rate
// limiter, and the relational schema shared by the domain services.
package storage
