// Package database provides the SQLite catalog store for photomap.
//
// It stores:
//   - Photos with their owner, stored filenames, derivative and EXIF data
//   - Users (the minimal account view the pipeline resolves owners against)
//   - Ratings, one per (photo, user), cascading with their photo
//   - Key/value metadata such as the schema version and last intake time
//
// The database uses WAL mode for concurrent readers and enables foreign
// keys so that deleting a photo removes its ratings and deleting a user
// orphans their photos. All errors other than lookups of absent rows wrap
// catalog.ErrPersistence.
package database
