package classify

import (
	"testing"

	"go.uber.org/zap"

	"github.com/widesky/widesky-ingest/internal/firehose"
)

func TestOf(t *testing.T) {
	cases := []struct {
		name   string
		action string
		coll   string
		want   Kind
	}{
		{"create post", "create", "app.bsky.feed.post", KindPost},
		{"create repost", "create", "app.bsky.feed.repost", KindRepost},
		{"create like", "create", "app.bsky.feed.like", KindLike},
		{"update post ignored", "update", "app.bsky.feed.post", KindNone},
		{"delete post ignored", "delete", "app.bsky.feed.post", KindNone},
		{"create profile ignored", "create", "app.bsky.actor.profile", KindNone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Of(firehose.Op{Action: tc.action, Collection: tc.coll})
			if got != tc.want {
				t.Fatalf("Of(%s/%s) = %v, want %v", tc.action, tc.coll, got, tc.want)
			}
		})
	}
}

func TestPostMinimal(t *testing.T) {
	op := firehose.Op{
		CID: "bafyminimal",
		Record: map[string]any{
			"createdAt": "2026-01-01T00:00:00Z",
			"text":      "hello world",
		},
	}
	log := zap.NewNop()
	p := Post(op, "did:plc:abc", "bafycommit", log)

	if p.CID != "bafyminimal" || p.DID != "did:plc:abc" || p.Commit != "bafycommit" {
		t.Fatalf("unexpected identity fields: %+v", p)
	}
	if p.Text != "hello world" {
		t.Fatalf("text = %q", p.Text)
	}
	if p.HasEmbed || p.HasRecord || p.IsReply {
		t.Fatalf("minimal post should have no embed/record/reply flags: %+v", p)
	}
}

func TestPostImageEmbed(t *testing.T) {
	op := firehose.Op{
		CID: "c1",
		Record: map[string]any{
			"createdAt": "2026-01-01T00:00:00Z",
			"text":      "look at this",
			"embed": map[string]any{
				"$type": "app.bsky.embed.images",
				"images": []any{
					map[string]any{"image": map[string]any{"ref": map[string]any{"$link": "bafyimg1"}}},
					map[string]any{"image": map[string]any{"ref": map[string]any{"$link": "bafyimg2"}}},
				},
			},
		},
	}
	p := Post(op, "did:plc:abc", "commit1", zap.NewNop())

	if !p.HasEmbed || p.HasRecord {
		t.Fatalf("expected has_embed=true has_record=false, got %+v", p)
	}
	if p.EmbedType != "app.bsky.embed.images" {
		t.Fatalf("embed type = %q", p.EmbedType)
	}
	if len(p.EmbedRefs) != 2 || p.EmbedRefs[0] != "bafyimg1" || p.EmbedRefs[1] != "bafyimg2" {
		t.Fatalf("embed refs = %+v", p.EmbedRefs)
	}
}

func TestPostRecordWithMedia(t *testing.T) {
	op := firehose.Op{
		CID: "c2",
		Record: map[string]any{
			"createdAt": "2026-01-01T00:00:00Z",
			"embed": map[string]any{
				"$type": "app.bsky.embed.recordWithMedia",
				"record": map[string]any{
					"record": map[string]any{
						"cid": map[string]any{"$link": "bafyquoted"},
						"uri": "at://did:plc:other/app.bsky.feed.post/xyz",
					},
				},
				"media": map[string]any{
					"$type": "app.bsky.embed.external",
					"external": map[string]any{
						"uri": "https://example.com/article",
					},
				},
			},
		},
	}
	p := Post(op, "did:plc:abc", "commit2", zap.NewNop())

	if !p.HasEmbed || !p.HasRecord {
		t.Fatalf("expected both has_embed and has_record true, got %+v", p)
	}
	if p.RecordCID != "bafyquoted" || p.RecordURI != "at://did:plc:other/app.bsky.feed.post/xyz" {
		t.Fatalf("quoted record fields wrong: %+v", p)
	}
	if p.EmbedType != "external" {
		t.Fatalf("embed_type should be overwritten with media's terminal segment, got %q", p.EmbedType)
	}
	if p.ExternalURI != "https://example.com/article" {
		t.Fatalf("external_uri = %q", p.ExternalURI)
	}
}

func TestPostReply(t *testing.T) {
	op := firehose.Op{
		CID: "c3",
		Record: map[string]any{
			"text": "a reply",
			"reply": map[string]any{
				"root":   map[string]any{"cid": "rootcid", "uri": "rooturi"},
				"parent": map[string]any{"cid": "parentcid", "uri": "parenturi"},
			},
		},
	}
	p := Post(op, "did:plc:abc", "commit3", zap.NewNop())

	if !p.IsReply {
		t.Fatalf("expected is_reply = true")
	}
	if p.ReplyRootCID != "rootcid" || p.ReplyRootURI != "rooturi" {
		t.Fatalf("reply root fields wrong: %+v", p)
	}
	if p.ReplyParentCID != "parentcid" || p.ReplyParentURI != "parenturi" {
		t.Fatalf("reply parent fields wrong: %+v", p)
	}
}

func TestPostUnknownEmbedDoesNotPanic(t *testing.T) {
	op := firehose.Op{
		CID: "c4",
		Record: map[string]any{
			"text": "weird embed",
			"embed": map[string]any{
				"$type": "app.bsky.embed.somethingNew",
			},
		},
	}
	p := Post(op, "did:plc:abc", "commit4", zap.NewNop())
	if p.HasEmbed || p.HasRecord {
		t.Fatalf("unknown embed type should be a no-op, got %+v", p)
	}
}

func TestRepostAndLike(t *testing.T) {
	op := firehose.Op{
		CID: "c5",
		Record: map[string]any{
			"createdAt": "2026-01-01T00:00:00Z",
			"subject":   map[string]any{"cid": "subjcid", "uri": "subjuri"},
		},
	}

	r := Repost(op, "did:plc:abc", "commit5")
	if r.Subject.CID != "subjcid" || r.Subject.URI != "subjuri" {
		t.Fatalf("repost subject wrong: %+v", r)
	}

	l := Like(op, "did:plc:abc", "commit5")
	if l.Subject.CID != "subjcid" || l.Subject.URI != "subjuri" {
		t.Fatalf("like subject wrong: %+v", l)
	}
}

func TestPostNilRecordIdentityOnly(t *testing.T) {
	op := firehose.Op{CID: "c6", Record: nil}
	p := Post(op, "did:plc:abc", "commit6", zap.NewNop())
	if p.CID != "c6" || p.Text != "" {
		t.Fatalf("expected bare identity-only post, got %+v", p)
	}
}
