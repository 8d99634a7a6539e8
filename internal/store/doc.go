// Package store is the client for the content store's REST JSON API.
//
// The store is consumed as a black box: list items with exact-match filters,
// create items, patch items, and upload files, all under one bearer
// credential. Non-2xx responses surface as *APIError with the store's error
// payload attached; the caller decides per call whether that is fatal.
// Reads are retried with bounded backoff, writes never are.
package store
