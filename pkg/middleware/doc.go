// Package middleware provides HTTP middleware for principal extraction,
// request identification and rate limiting.
//
// # Overview
//
// Authentication itself happens upstream (a gateway or reverse proxy); this
// package trusts the identity headers that the upstream injects and turns
// them into request context. It also provides in-memory and Redis-backed
// rate limiting.
//
// # Middleware Components
//
// PrincipalMiddleware: identity header extraction
//
//	router.Use(middleware.PrincipalMiddleware(logger))
//	// Reads X-User-ID (and optional X-User-Name), rejects with 401 when absent
//
// RequestIDMiddleware: per-request UUID
//
//	router.Use(middleware.RequestIDMiddleware())
//
// RateLimitMiddleware: in-memory token bucket
//
//	router.Use(middleware.NewRateLimitMiddleware().Handler)
//
// DistributedRateLimitMiddleware: Redis-backed, shared across instances
//
//	router.Use(middleware.NewDistributedRateLimitMiddleware(redisClient, logger).Handler)
//
// # Rate Limiting
//
// Anonymous: 100 req/min, 10 burst
// Per-Principal: 1000 req/min, 50 burst
//
// # Related Packages
//
//   - pkg/contextkeys: context key definitions
//   - pkg/access: per-permit capability resolution (happens later, in the facade)
package middleware
