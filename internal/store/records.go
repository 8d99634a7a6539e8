package store

// Collection names in the content store.
const (
	CollectionEvents = "events"
	CollectionVenues = "venues"
	CollectionTags   = "tags"
)

// Publication states for stored events.
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
)

// EventRecord is a stored event as returned by the content store. The link
// field is the uniqueness key for idempotent imports; at most one record
// exists per distinct link.
type EventRecord struct {
	ID                 string    `json:"id"`
	Status             string    `json:"status"`
	Title              string    `json:"title"`
	Link               string    `json:"link"`
	StartTime          string    `json:"start_time"`
	EndTime            string    `json:"end_time"`
	Description        string    `json:"description"`
	RawDescription     string    `json:"raw_description"`
	ParsedVenueName    string    `json:"parsed_venue_name"`
	ParsedVenueAddress string    `json:"parsed_venue_address"`
	Source             string    `json:"source"`
	Imported           bool      `json:"imported"`
	RSVPLink           string    `json:"rsvp_link"`
	Venue              Reference `json:"venue"`
	Tag                Reference `json:"tag"`
	Image              Reference `json:"image"`
}

// EventFields is the create payload for an event. Relations are submitted as
// bare ids; empty relation fields are omitted so the store leaves them null.
type EventFields struct {
	Status             string `json:"status"`
	Title              string `json:"title"`
	Link               string `json:"link"`
	StartTime          string `json:"start_time"`
	EndTime            string `json:"end_time"`
	Description        string `json:"description"`
	RawDescription     string `json:"raw_description"`
	ParsedVenueName    string `json:"parsed_venue_name,omitempty"`
	ParsedVenueAddress string `json:"parsed_venue_address,omitempty"`
	Source             string `json:"source"`
	Imported           bool   `json:"imported"`
	RSVPLink           string `json:"rsvp_link,omitempty"`
	Venue              string `json:"venue,omitempty"`
	Tag                string `json:"tag,omitempty"`
	Image              string `json:"image,omitempty"`
}

// VenueRecord is a stored venue; name is the dedup key.
type VenueRecord struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// VenueFields is the create payload for a venue.
type VenueFields struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// TagRecord is a stored tag; name is the dedup key.
type TagRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TagFields is the create payload for a tag.
type TagFields struct {
	Name string `json:"name"`
}

// FileRecord is a stored file asset.
type FileRecord struct {
	ID       string `json:"id"`
	Filename string `json:"filename_download"`
	Type     string `json:"type"`
}
