// Lookup of platform entities (channels, roles, users) by ID or by name, with caching.
//
// The moderation engine resolves response targets through a Directory, and treats ErrNotFound as "no match for this reference".
package directory
