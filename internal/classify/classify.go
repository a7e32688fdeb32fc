// Package classify turns a decoded firehose repo op into one of the
// three activity records this pipeline persists (spec.md §4.2).
package classify

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/widesky/widesky-ingest/internal/firehose"
	"github.com/widesky/widesky-ingest/internal/records"
)

// Kind is which activity table a create op belongs to.
type Kind int

const (
	KindNone Kind = iota
	KindPost
	KindRepost
	KindLike
)

const (
	collectionPost   = "app.bsky.feed.post"
	collectionRepost = "app.bsky.feed.repost"
	collectionLike   = "app.bsky.feed.like"
)

// Of reports which (if any) recognized record kind a repo op is. Only
// create ops in the three feed collections are recognized; everything
// else (updates, deletes, other namespaces) is KindNone.
func Of(op firehose.Op) Kind {
	if op.Action != "create" {
		return KindNone
	}
	switch op.Collection {
	case collectionPost:
		return KindPost
	case collectionRepost:
		return KindRepost
	case collectionLike:
		return KindLike
	default:
		return KindNone
	}
}

// Post assembles a records.Post from a create-post op. The op's
// Record is expected to be non-nil (the caller drops ops whose block
// was never resolved); a nil Record produces an otherwise-empty post.
func Post(op firehose.Op, repo, commit string, log *zap.Logger) records.Post {
	p := records.Post{
		CID:    op.CID,
		DID:    repo,
		Commit: commit,
	}
	if op.Record == nil {
		return p
	}

	p.CreatedAt = getString(op.Record, "createdAt")
	p.Text = getString(op.Record, "text")
	p.Langs = getStringSlice(op.Record, "langs")
	if facets, ok := op.Record["facets"]; ok && facets != nil {
		if enc, err := json.Marshal(facets); err == nil {
			p.Facets = enc
		}
	}

	applyEmbed(op.Record, &p, log)

	if reply, ok := getMap(op.Record, "reply"); ok {
		applyReply(reply, &p)
	}

	return p
}

// Repost assembles a records.Repost from a create-repost op.
func Repost(op firehose.Op, repo, commit string) records.Repost {
	r := records.Repost{CID: op.CID, DID: repo, Commit: commit}
	if op.Record == nil {
		return r
	}
	r.CreatedAt = getString(op.Record, "createdAt")
	if subject, ok := getMap(op.Record, "subject"); ok {
		r.Subject = records.Subject{
			CID: getString(subject, "cid"),
			URI: getString(subject, "uri"),
		}
	}
	return r
}

// Like assembles a records.Like from a create-like op.
func Like(op firehose.Op, repo, commit string) records.Like {
	l := records.Like{CID: op.CID, DID: repo, Commit: commit}
	if op.Record == nil {
		return l
	}
	l.CreatedAt = getString(op.Record, "createdAt")
	if subject, ok := getMap(op.Record, "subject"); ok {
		l.Subject = records.Subject{
			CID: getString(subject, "cid"),
			URI: getString(subject, "uri"),
		}
	}
	return l
}

// applyEmbed resolves the post's embed discriminated union (spec.md
// §4.2's table). Unknown embed or media shapes are logged and
// otherwise ignored — they never fail the enclosing post.
func applyEmbed(data map[string]any, p *records.Post, log *zap.Logger) {
	embed, ok := getMap(data, "embed")
	if !ok {
		return
	}

	rawType := getString(embed, "$type")
	embedType := lastSegment(rawType)
	p.EmbedType = rawType

	switch embedType {
	case "video":
		p.HasEmbed = true
		if ref, ok := getMap(embed, "video"); ok {
			p.EmbedRefs = []string{refString(ref["ref"])}
		}
	case "images":
		p.HasEmbed = true
		if imgs, ok := embed["images"].([]any); ok {
			refs := make([]string, 0, len(imgs))
			for _, raw := range imgs {
				img, ok := raw.(map[string]any)
				if !ok {
					continue
				}
				if image, ok := getMap(img, "image"); ok {
					refs = append(refs, refString(image["ref"]))
				}
			}
			p.EmbedRefs = refs
		}
	case "external":
		p.HasEmbed = true
		if ext, ok := getMap(embed, "external"); ok {
			p.ExternalURI = getString(ext, "uri")
		}
	case "record":
		p.HasEmbed = false
		p.HasRecord = true
		if rec, ok := getMap(embed, "record"); ok {
			p.RecordCID = refString(rec["cid"])
			p.RecordURI = getString(rec, "uri")
		}
	case "recordWithMedia":
		p.HasEmbed = true
		p.HasRecord = true
		if rec, ok := getMap(embed, "record"); ok {
			if inner, ok := getMap(rec, "record"); ok {
				p.RecordCID = refString(inner["cid"])
				p.RecordURI = getString(inner, "uri")
			}
		}
		media, ok := getMap(embed, "media")
		if !ok {
			return
		}
		mediaType := lastSegment(getString(media, "$type"))
		p.EmbedType = mediaType
		switch mediaType {
		case "video":
			if ref, ok := getMap(media, "video"); ok {
				p.EmbedRefs = []string{refString(ref["ref"])}
			}
		case "images":
			if imgs, ok := media["images"].([]any); ok {
				refs := make([]string, 0, len(imgs))
				for _, raw := range imgs {
					img, ok := raw.(map[string]any)
					if !ok {
						continue
					}
					if image, ok := getMap(img, "image"); ok {
						refs = append(refs, refString(image["ref"]))
					}
				}
				p.EmbedRefs = refs
			}
		case "external":
			if ext, ok := getMap(media, "external"); ok {
				p.ExternalURI = getString(ext, "uri")
			}
		default:
			log.Warn("unrecognized recordWithMedia media type", zap.String("mediaType", mediaType))
		}
	case "":
		// no embed discriminator present; nothing to do.
	default:
		log.Warn("unrecognized embed type", zap.String("embedType", embedType))
	}
}

// applyReply flattens a post's reply object into its four scalar
// columns (spec.md §4.2).
func applyReply(reply map[string]any, p *records.Post) {
	p.IsReply = true
	if root, ok := getMap(reply, "root"); ok {
		p.ReplyRootCID = getString(root, "cid")
		p.ReplyRootURI = getString(root, "uri")
	}
	if parent, ok := getMap(reply, "parent"); ok {
		p.ReplyParentCID = getString(parent, "cid")
		p.ReplyParentURI = getString(parent, "uri")
	}
}

func getString(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func getMap(m map[string]any, key string) (map[string]any, bool) {
	v, ok := m[key]
	if !ok || v == nil {
		return nil, false
	}
	sub, ok := v.(map[string]any)
	return sub, ok
}

func getStringSlice(m map[string]any, key string) []string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// refString extracts a blob/CID link's string form. DAG-CBOR decodes
// a link as {"$link": "<cid>"}; anything else is stringified as-is so
// an unexpected shape still produces a usable (if odd) value rather
// than an empty column.
func refString(v any) string {
	if v == nil {
		return ""
	}
	if m, ok := v.(map[string]any); ok {
		if link, ok := m["$link"].(string); ok {
			return link
		}
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func lastSegment(s string) string {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[i+1:]
		}
	}
	return s
}
