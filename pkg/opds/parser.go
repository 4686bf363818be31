// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

package opds

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"
)

// Parser turns a feed document into its model form.
type Parser interface {
	Parse(uri string, r io.Reader) (*Feed, error)
}

// ParseError wraps a malformed feed failure with the URI it came from.
type ParseError struct {
	URI string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing feed %s: %v", e.URI, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// XML mapping of an Atom loans feed. Availability is carried by an
// opds:availability child of each acquisition link; the entry availability is
// taken from the first link that declares one.
type (
	xmlFeed struct {
		XMLName xml.Name   `xml:"feed"`
		ID      string     `xml:"id"`
		Title   string     `xml:"title"`
		Updated string     `xml:"updated"`
		Entries []xmlEntry `xml:"entry"`
	}

	xmlEntry struct {
		ID      string      `xml:"id"`
		Title   string      `xml:"title"`
		Authors []xmlAuthor `xml:"author"`
		Summary string      `xml:"summary"`
		Updated string      `xml:"updated"`
		Links   []xmlLink   `xml:"link"`
	}

	xmlAuthor struct {
		Name string `xml:"name"`
	}

	xmlLink struct {
		Rel          string           `xml:"rel,attr"`
		Type         string           `xml:"type,attr"`
		Href         string           `xml:"href,attr"`
		Templated    bool             `xml:"templated,attr"`
		Availability *xmlAvailability `xml:"availability"`
	}

	xmlAvailability struct {
		Status string `xml:"status,attr"`
		Since  string `xml:"since,attr"`
		Until  string `xml:"until,attr"`
	}
)

type xmlParser struct{}

// NewParser returns the default XML feed parser.
func NewParser() Parser {
	return &xmlParser{}
}

func (p *xmlParser) Parse(uri string, r io.Reader) (*Feed, error) {

	var raw xmlFeed
	if err := xml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, &ParseError{URI: uri, Err: err}
	}

	feed := &Feed{
		ID:      raw.ID,
		Title:   raw.Title,
		Updated: parseTime(raw.Updated),
	}

	for _, re := range raw.Entries {
		if re.ID == "" {
			return nil, &ParseError{URI: uri, Err: fmt.Errorf("entry without an id element")}
		}
		entry := Entry{
			ID:      re.ID,
			Title:   re.Title,
			Summary: re.Summary,
			Updated: parseTime(re.Updated),
			// an entry with no availability element is treated as loaned,
			// since it appears in a loans feed
			Availability: Availability{State: AvailabilityLoaned},
		}
		for _, a := range re.Authors {
			if a.Name != "" {
				entry.Authors = append(entry.Authors, a.Name)
			}
		}
		availabilitySet := false
		for _, l := range re.Links {
			entry.Acquisitions = append(entry.Acquisitions, Acquisition{
				Rel:       l.Rel,
				Type:      l.Type,
				Href:      l.Href,
				Templated: l.Templated,
			})
			if l.Availability != nil && !availabilitySet {
				entry.Availability = Availability{
					State: l.Availability.Status,
					Since: parseTimePtr(l.Availability.Since),
					Until: parseTimePtr(l.Availability.Until),
				}
				availabilitySet = true
			}
		}
		feed.Entries = append(feed.Entries, entry)
	}

	return feed, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseTimePtr(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
