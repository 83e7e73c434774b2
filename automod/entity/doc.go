// Channel, role, and user references as they appear in moderation configuration.
//
// A reference can name an entity by numeric ID, by display name, or both ("123456::alice"). Name-only references learn their ID the first time they match an observed entity.
package entity
