// Package permission resolves role names to the permission names embedded in
// a cached session.
//
// A [Catalog] is built once from the configured role table and assigns each
// distinct permission one bit of a [Mask64]. The package does no I/O.
package permission
