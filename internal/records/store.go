package records

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/widesky/widesky-ingest/internal/database"
)

// Store provides idempotent batched inserts for posts, reposts, and
// likes, backed by PostgreSQL. All three are append-only: a primary
// key conflict is a no-op (spec.md §4.3).
type Store struct {
	db *database.DB
}

// NewStore creates a records Store.
func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// InsertPosts writes a batch of posts in one round trip. Each row is
// its own statement in a pipelined pgx.Batch, which avoids a single
// giant multi-row VALUES list for a 19-column table. The batch runs as
// one implicit transaction: if any row fails, none of the batch is
// written and the first failure is returned.
func (s *Store) InsertPosts(ctx context.Context, posts []Post) error {
	if len(posts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range posts {
		batch.Queue(`
			INSERT INTO posts (
				cid, created_at, did, commit, text, langs, facets,
				has_embed, has_record, embed_type, embed_refs, external_uri,
				record_cid, record_uri, is_reply,
				reply_root_cid, reply_root_uri, reply_parent_cid, reply_parent_uri
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7,
				$8, $9, $10, $11, $12,
				$13, $14, $15,
				$16, $17, $18, $19
			) ON CONFLICT (cid) DO NOTHING`,
			p.CID, parseTimestamp(p.CreatedAt), p.DID, p.Commit, p.Text, p.Langs, p.Facets,
			p.HasEmbed, p.HasRecord, p.EmbedType, p.EmbedRefs, p.ExternalURI,
			p.RecordCID, p.RecordURI, p.IsReply,
			p.ReplyRootCID, p.ReplyRootURI, p.ReplyParentCID, p.ReplyParentURI,
		)
	}
	return s.runBatch(ctx, batch, len(posts))
}

// InsertReposts writes a batch of reposts in one round trip.
func (s *Store) InsertReposts(ctx context.Context, reposts []Repost) error {
	if len(reposts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, r := range reposts {
		batch.Queue(`
			INSERT INTO reposts (cid, created_at, did, commit, subject_cid, subject_uri)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (cid) DO NOTHING`,
			r.CID, parseTimestamp(r.CreatedAt), r.DID, r.Commit, r.Subject.CID, r.Subject.URI,
		)
	}
	return s.runBatch(ctx, batch, len(reposts))
}

// InsertLikes writes a batch of likes in one round trip.
func (s *Store) InsertLikes(ctx context.Context, likes []Like) error {
	if len(likes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, l := range likes {
		batch.Queue(`
			INSERT INTO likes (cid, created_at, did, commit, subject_cid, subject_uri)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (cid) DO NOTHING`,
			l.CID, parseTimestamp(l.CreatedAt), l.DID, l.Commit, l.Subject.CID, l.Subject.URI,
		)
	}
	return s.runBatch(ctx, batch, len(likes))
}

func (s *Store) runBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.db.Pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("records: batch exec %d/%d: %w", i+1, n, err)
		}
	}
	return nil
}
