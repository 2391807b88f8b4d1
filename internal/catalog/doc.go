// Package catalog defines the photo catalog domain: photos, users, ratings,
// and the Writer/Store interfaces the rest of photomap persists through.
//
// The sqlite implementation lives in internal/database. Errors are reported
// with the sentinels ErrNotFound, ErrPersistence and ErrInvalidRating and
// should be matched with errors.Is.
package catalog
