// Package cli implements the event-importer command line interface.
//
// The process exits 0 on completion regardless of per-item failures;
// aggregate counts are reported in the summary instead. Exit 1 is reserved
// for startup failures, chiefly a missing store credential.
package cli
