package store

// Schema is the story database layout editkeeper writes to. The
// story_paragraphs table is owned by the story service; editkeeper creates
// it only when missing so it can run against a fresh file.
const Schema = `
CREATE TABLE IF NOT EXISTS story_paragraphs (
    id                  TEXT PRIMARY KEY,
    story_id            TEXT,
    content             TEXT NOT NULL DEFAULT '',
    token_cost          INTEGER NOT NULL DEFAULT 0,
    summary_from_action TEXT NOT NULL DEFAULT '',
    summary             TEXT NOT NULL DEFAULT '',
    summary_token_cost  INTEGER NOT NULL DEFAULT 0,
    updated_at          INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_story_paragraphs_story ON story_paragraphs(story_id);

CREATE TABLE IF NOT EXISTS edit_log (
    id           TEXT PRIMARY KEY,
    paragraph_id TEXT NOT NULL,
    selector     TEXT NOT NULL,
    action       TEXT NOT NULL,
    column_name  TEXT NOT NULL,
    old_text     TEXT,
    new_text     TEXT,
    applied_at   INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_edit_log_paragraph ON edit_log(paragraph_id, applied_at);
`
