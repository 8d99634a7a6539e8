// Package importer is the reconciliation engine of the event pipeline.
//
// For each configured feed source the engine fetches the feed and walks its
// items one at a time: extract content, resolve dates, drop past events,
// check the store for an existing record by source link, then create a
// field-complete published event or back-fill empty fields of the existing
// one. Failures are confined to their item (or feed, for fetch failures);
// the run always completes and reports folded per-feed and overall counts.
package importer
