// Package ratelimit implements budget-based throttles keyed by operation class.
//
// MemoryLimiter keeps a sliding window per class in process memory;
// RedisLimiter shares fixed-window counters between processes through Redis.
package ratelimit
