// Caching of arbitrary data (usually JSON strings) with a fixed TTL and purging.
//
// Includes an interface and implementations using redis and in-process memory. The entity directory uses this to avoid repeated platform lookups of channels, roles, and users.
package cachestore
