// Package ingest runs the two-stage processing/persistence pipeline
// described in spec.md §4.2 and §4.3.
package ingest

import (
	"github.com/widesky/widesky-ingest/internal/records"
)

// Kind is the tag on a persistence-queue request.
type Kind int

const (
	KindInsertUser Kind = iota
	KindInsertPost
	KindInsertRepost
	KindInsertLike
	kindShutdown
)

// Request is one tagged item on the persistence queue.
type Request struct {
	Kind Kind

	UserDID string
	Post    records.Post
	Repost  records.Repost
	Like    records.Like
}

// ShutdownRequest is the sentinel a persistence worker recognizes as
// "finish your current item and exit" (spec.md §4.5).
var ShutdownRequest = Request{Kind: kindShutdown}
