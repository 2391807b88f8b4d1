// Package mediatypes provides extension and MIME type helpers shared across
// photomap.
//
// This package exists as a dependency-free foundation that can be imported by
// other packages without creating import cycles.
//
// Two extension lists matter to intake:
//
//	discovery := mediatypes.ImageExtensionSet()                  // what the poller picks up
//	allowed := mediatypes.NewExtensionSet(mediatypes.DefaultAllowedExtensions...) // what validation accepts
//
// A file the poller discovers but validation rejects ends up in the failed
// directory with a diagnostic. Files matching neither list are left alone.
package mediatypes
