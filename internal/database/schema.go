package database

// CreateSchema bootstraps the four tables described in spec.md §3. All
// statements are idempotent (IF NOT EXISTS) so startup is safe to rerun.
const CreateSchema = `
-- users: first-sighted handle plus the full, monotonically widening
-- set of handles the PLC directory currently advertises for this DID.
CREATE TABLE IF NOT EXISTS users (
    did                 TEXT PRIMARY KEY,
    first_known_as      TEXT,
    also_known_as_full  TEXT[]
);

-- posts: one row per post CID, written at most once (ON CONFLICT DO
-- NOTHING at the batch-insert layer). Embed and reply shapes are
-- flattened into their own columns per spec.md §3.
CREATE TABLE IF NOT EXISTS posts (
    cid                 TEXT PRIMARY KEY,
    created_at          TIMESTAMPTZ,
    did                 TEXT,
    commit              TEXT,
    text                TEXT,
    langs               TEXT[],
    facets              JSONB,
    has_embed           BOOLEAN NOT NULL DEFAULT FALSE,
    has_record          BOOLEAN NOT NULL DEFAULT FALSE,
    embed_type          TEXT,
    embed_refs          TEXT[],
    external_uri        TEXT,
    record_cid          TEXT,
    record_uri          TEXT,
    is_reply            BOOLEAN NOT NULL DEFAULT FALSE,
    reply_root_cid      TEXT,
    reply_root_uri      TEXT,
    reply_parent_cid    TEXT,
    reply_parent_uri    TEXT
);

CREATE TABLE IF NOT EXISTS reposts (
    cid                 TEXT PRIMARY KEY,
    created_at          TIMESTAMPTZ,
    did                 TEXT,
    commit              TEXT,
    subject_cid         TEXT,
    subject_uri         TEXT
);

CREATE TABLE IF NOT EXISTS likes (
    cid                 TEXT PRIMARY KEY,
    created_at          TIMESTAMPTZ,
    did                 TEXT,
    commit              TEXT,
    subject_cid         TEXT,
    subject_uri         TEXT
);
`

// DropSchema tears down all four tables. Used only when the
// development reset switch is set.
const DropSchema = `
DROP TABLE IF EXISTS posts;
DROP TABLE IF EXISTS reposts;
DROP TABLE IF EXISTS likes;
DROP TABLE IF EXISTS users;
`
