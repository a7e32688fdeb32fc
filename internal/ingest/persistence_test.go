package ingest

import (
	"testing"

	"github.com/widesky/widesky-ingest/internal/records"
)

func TestDueForSize(t *testing.T) {
	p := &PersistencePool{batchSize: 2}

	var b batches
	if p.dueForSize(&b).any() {
		t.Fatalf("empty batches should not be due")
	}

	b.posts = append(b.posts, records.Post{CID: "a"})
	if p.dueForSize(&b).any() {
		t.Fatalf("batch below threshold should not be due")
	}

	b.posts = append(b.posts, records.Post{CID: "b"})
	b.reposts = append(b.reposts, records.Repost{CID: "c"})

	due := p.dueForSize(&b)
	if !due.posts {
		t.Fatalf("posts at threshold should be due: %+v", due)
	}
	if due.reposts {
		t.Fatalf("reposts below threshold should not be due: %+v", due)
	}
	if due.likes || due.users {
		t.Fatalf("untouched kinds should not be due: %+v", due)
	}
}

func TestNonEmpty(t *testing.T) {
	var b batches
	if (&PersistencePool{}).nonEmpty(&b) {
		t.Fatalf("zero-value batches should be empty")
	}
	b.likes = append(b.likes, records.Like{CID: "x"})
	if !(&PersistencePool{}).nonEmpty(&b) {
		t.Fatalf("batches with a like should be non-empty")
	}
}
