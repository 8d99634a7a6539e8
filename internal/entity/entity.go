// Package entity resolves venue and tag relations with a find-or-create
// contract against the content store.
//
// Both lookups match by exact name equality; names are deliberately not
// normalized, so near-duplicate names create separate records. The batch runs
// single-threaded, so no cross-item locking is needed.
package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/civichall/event-importer/internal/config"
	"github.com/civichall/event-importer/internal/store"
)

// Resolver finds or creates venues and tags in the content store.
type Resolver struct {
	store *store.Client
	rules []config.TagRule
}

// NewResolver creates a Resolver using the configured tag keyword rules.
func NewResolver(client *store.Client, rules []config.TagRule) *Resolver {
	return &Resolver{store: client, rules: rules}
}

// Venue returns the id of the venue with the given name, creating it with
// the given address if absent. An empty name short-circuits to no venue
// without a store call.
func (r *Resolver) Venue(ctx context.Context, name, address string) (string, error) {
	if name == "" {
		return "", nil
	}

	venues, err := r.store.ListVenues(ctx, store.Filter{"name": name}, 1)
	if err != nil {
		return "", fmt.Errorf("looking up venue %q: %w", name, err)
	}
	if len(venues) > 0 {
		return venues[0].ID, nil
	}

	created, err := r.store.CreateVenue(ctx, store.VenueFields{Name: name, Address: address})
	if err != nil {
		return "", fmt.Errorf("creating venue %q: %w", name, err)
	}
	return created.ID, nil
}

// Tag matches the event title against the configured keyword rules
// (case-insensitive substring) and find-or-creates the matching tag. No
// matching rule means no tag.
func (r *Resolver) Tag(ctx context.Context, title string) (string, error) {
	rule, ok := r.matchRule(title)
	if !ok {
		return "", nil
	}

	tags, err := r.store.ListTags(ctx, store.Filter{"name": rule.TagName}, 1)
	if err != nil {
		return "", fmt.Errorf("looking up tag %q: %w", rule.TagName, err)
	}
	if len(tags) > 0 {
		return tags[0].ID, nil
	}

	created, err := r.store.CreateTag(ctx, store.TagFields{Name: rule.TagName})
	if err != nil {
		return "", fmt.Errorf("creating tag %q: %w", rule.TagName, err)
	}
	return created.ID, nil
}

func (r *Resolver) matchRule(title string) (config.TagRule, bool) {
	lower := strings.ToLower(title)
	for _, rule := range r.rules {
		if strings.Contains(lower, strings.ToLower(rule.Keyword)) {
			return rule, true
		}
	}
	return config.TagRule{}, false
}
