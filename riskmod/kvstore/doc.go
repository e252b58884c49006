// Small key/value contract for short-lived, per-user state: rate-limit windows and cached evaluation results.
//
// Includes an interface and implementations using in-process memory, redis, and memcached.
package kvstore
