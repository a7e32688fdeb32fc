// Package firehose decodes the AT Protocol subscribeRepos wire format:
// a CBOR event header followed by a CBOR commit payload whose
// "blocks" field is itself a CAR archive of MST blocks (spec.md §6).
package firehose

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	atproto "github.com/bluesky-social/indigo/api/atproto"
	"github.com/bluesky-social/indigo/atproto/data"
	"github.com/bluesky-social/indigo/events"
	"github.com/ipfs/go-cid"
	car "github.com/ipld/go-car"
)

// Op is one repository mutation inside a commit, with its MST record
// block already resolved (when the op is a create/update and the
// referenced block was present in the commit's CAR blocks).
type Op struct {
	Action     string
	Collection string
	Rkey       string
	CID        string
	Record     map[string]any
}

// Commit is a decoded #commit frame: one author's repo mutation plus
// its create/update/delete ops.
type Commit struct {
	Repo      string
	Rev       string
	CommitCID string
	Seq       int64
	Time      string
	Ops       []Op
}

// DecodeFrame parses one websocket message. ok is false for frame
// types this pipeline has no use for (info frames, error frames,
// non-commit message types) — those are not errors, just skipped.
func DecodeFrame(raw []byte) (commit *Commit, ok bool, err error) {
	r := bytes.NewReader(raw)

	var header events.EventHeader
	if err := header.UnmarshalCBOR(r); err != nil {
		return nil, false, fmt.Errorf("firehose: decode header: %w", err)
	}
	if header.Op != events.EvtKindMessage || header.MsgType != "#commit" {
		return nil, false, nil
	}

	var raw_ atproto.SyncSubscribeRepos_Commit
	if err := raw_.UnmarshalCBOR(r); err != nil {
		return nil, false, fmt.Errorf("firehose: decode commit body: %w", err)
	}

	blocks, err := readBlocks(raw_.Blocks)
	if err != nil {
		return nil, false, fmt.Errorf("firehose: read commit blocks: %w", err)
	}

	ops := make([]Op, 0, len(raw_.Ops))
	for _, o := range raw_.Ops {
		if o == nil {
			continue
		}
		collection, rkey, split := splitPath(o.Path)
		if !split {
			continue
		}

		op := Op{Action: o.Action, Collection: collection, Rkey: rkey}
		if o.Cid != nil {
			op.CID = o.Cid.String()
			if blk, found := blocks[*o.Cid]; found {
				rec, decErr := data.UnmarshalCBOR(blk)
				if decErr == nil {
					op.Record = rec
				}
				// A malformed record block is dropped silently here;
				// the processing stage skips ops whose Record is nil.
			}
		}
		ops = append(ops, op)
	}

	return &Commit{
		Repo:      raw_.Repo,
		Rev:       raw_.Rev,
		CommitCID: cid.Cid(raw_.Commit).String(),
		Seq:       raw_.Seq,
		Time:      raw_.Time,
		Ops:       ops,
	}, true, nil
}

// readBlocks unpacks a commit's embedded CAR archive into a CID-keyed
// map of raw block bytes. An empty/absent blocks field (e.g. a
// tombstone-only commit) is not an error.
func readBlocks(raw []byte) (map[cid.Cid][]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	cr, err := car.NewCarReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("new car reader: %w", err)
	}

	out := make(map[cid.Cid][]byte, 8)
	for {
		blk, err := cr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read car block: %w", err)
		}
		out[blk.Cid()] = blk.RawData()
	}
	return out, nil
}

// splitPath divides a repo op's path ("collection/rkey") at its first
// slash. A path with no slash, or with nothing after the first slash,
// is not a record op this pipeline recognizes.
func splitPath(path string) (collection, rkey string, ok bool) {
	i := strings.IndexByte(path, '/')
	if i < 0 || i == len(path)-1 {
		return "", "", false
	}
	return path[:i], path[i+1:], true
}
