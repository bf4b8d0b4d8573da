// Package scene reads YAML scene files into a source model.
//
// A Document is the decoded file. A Binder turns successive documents into
// models that keep identifiers and timestamps for content that did not
// change, so that reloading an edited file lets the print reconcile only
// what the edit touched.
package scene
