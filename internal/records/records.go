// Package records provides the data model and idempotent batched
// upserts for activity records (spec.md §3 "Post", "Repost", "Like").
package records

import "time"

// Post is a single post record, with its embed and reply shapes
// flattened into scalar/array columns per spec.md §3.
type Post struct {
	CID            string
	CreatedAt      string // RFC3339, or "" when the upstream frame omitted it (legacy leniency)
	DID            string
	Commit         string
	Text           string
	Langs          []string
	Facets         []byte // opaque structured value, preserved verbatim as JSON
	HasEmbed       bool
	HasRecord      bool
	EmbedType      string
	EmbedRefs      []string
	ExternalURI    string
	RecordCID      string
	RecordURI      string
	IsReply        bool
	ReplyRootCID   string
	ReplyRootURI   string
	ReplyParentCID string
	ReplyParentURI string
}

// Subject is the (cid, uri) pair a Repost or Like refers to.
type Subject struct {
	CID string
	URI string
}

// Repost is a single repost record.
type Repost struct {
	CID       string
	CreatedAt string
	DID       string
	Commit    string
	Subject   Subject
}

// Like is a single like record, identical in shape to Repost.
type Like struct {
	CID       string
	CreatedAt string
	DID       string
	Commit    string
	Subject   Subject
}

// parseTimestamp converts an RFC3339 string to *time.Time, returning
// nil for the empty-string sentinel (spec.md §3: "the empty string is
// an allowed sentinel when the upstream frame omitted the field").
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
