// Package groups manages named scene groups for rotation.
//
// A group is an ordered list of OBS scene names and an interval in seconds.
// Each group also has a hidden set: scenes kept in the list but skipped by
// rotation, usually because OBS no longer has them. Reconcile hides missing
// scenes after every scene list refresh instead of deleting them, so a scene
// that is renamed away and back keeps its place.
//
// The Store persists the whole settings document through a Repository on
// every committed change. JSONFileRepository writes it atomically and also
// reads the bare {"group": ["scene", ...]} layout of older installs.
package groups
