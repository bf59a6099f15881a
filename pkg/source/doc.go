// Package source reads documents from a MongoDB collection or from exported
// files and hands them out one at a time as raw BSON.
//
// # Quick Start
//
// Open a collection:
//
//	src, err := source.Open(ctx, source.Config{
//	    URI:        "mongodb://localhost:27017",
//	    Database:   "app",
//	    Collection: "users",
//	    Limit:      10000,
//	})
//	defer src.Close()
//
// Or a file produced by mongoexport or mongodump:
//
//	src, err := source.Open(ctx, source.Config{Path: "users.json"})
//
// # Formats
//
// Files are read as newline-delimited Extended JSON, a single JSON array
// (mongoexport --jsonArray), multi-document YAML, or a BSON dump. The format
// is taken from the file extension and falls back to sniffing the first
// bytes. JSON numbers follow relaxed Extended JSON, so 25 reads as Int32
// and 2.5 as Double.
//
// # Errors
//
// Next returns io.EOF once the input is exhausted. A record that cannot be
// decoded is reported as a *RecordError; the source stays usable and the
// caller decides whether to skip it. Any other error is fatal.
package source
