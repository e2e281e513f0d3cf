// Package catalog persists layouts and templates on top of a
// [storage.Store].
//
// [LayoutStore] keeps the current layout of every uploaded file, keyed by
// (file ID, filename). [TemplateStore] keeps promoted layouts as immutable
// templates together with a display-name index.
//
// # Records
//
// Every record carries "schema_version". Records written before versioning
// existed are upgraded when read:
//
//   - a layout stored as a bare JSON array of blocks
//   - a template whose blocks sit under "structure" and/or "layout"
//
// The upgraded record is validated against a JSON Schema before it is used.
// Upgrades happen in memory; the record is rewritten in the new shape the
// next time it is saved.
package catalog
