// Package types defines the document and document-type entities, the
// Store and Table storage interfaces, and the standard error kinds shared
// by the overlay, row editing, and validation engines.
//
// A Document carries two parallel layers: Result, written only by the
// extraction process, and Edited, a sparse patch of user corrections. The
// effective document is always computed, never stored.
package types
