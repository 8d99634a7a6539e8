package event

// Candidate is the in-memory representation of one feed item before it is
// reconciled against the content store. It is built once per item, consumed
// immediately, and never persisted on its own.
type Candidate struct {
	Title      string
	SourceURL  string
	SourceGUID string

	// Unparsed strings lifted from the content blockquote; the resolver in
	// date.go turns these into instants.
	RawDateText string
	RawTimeText string

	VenueName    string
	VenueAddress string

	ImageURL    string
	Description string

	// RSVP links found inside the feed content, by host.
	LumaURL   string
	MeetupURL string
}

// FeedRSVP returns the feed-derived RSVP fallback. A Luma link outranks a
// Meetup link; the result is empty when the content carried neither.
func (c *Candidate) FeedRSVP() string {
	if c.LumaURL != "" {
		return c.LumaURL
	}
	return c.MeetupURL
}
