// Package overlay models styled text layers and the editing operations a
// session performs on them.
//
// Validation is centralized in Validate and enforced at every mutation entry
// point (add, text/style/position updates, duplicate, import) rather than at
// a single boundary, because drags, the style panel, and programmatic edits
// all mutate overlays independently.
package overlay
