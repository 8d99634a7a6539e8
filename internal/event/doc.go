// Package event defines the candidate event produced per feed item and the
// date/time resolver that turns extracted text into civil instants.
//
// Resolved instants are built in a fixed America/New_York civil calendar and
// serialized without a UTC offset (CivilFormat). The content store schema
// documents this civil-only convention; readers must not treat stored values
// as UTC.
package event
