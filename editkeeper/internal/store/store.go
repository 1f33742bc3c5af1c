// Package store provides the SQLite persistence layer for editkeeper.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hazyhaar/storyedit/dbopen"
)

// Column pairs a text column with the column holding its token cost.
type Column struct {
	Text  string
	Token string
}

// Columns written for each story region.
var (
	History  = Column{Text: "content", Token: "token_cost"}
	MidTerm  = Column{Text: "summary_from_action", Token: "summary_token_cost"}
	LongTerm = Column{Text: "summary", Token: "summary_token_cost"}
)

// Paragraph is one story_paragraphs row.
type Paragraph struct {
	ID                string `json:"id"`
	StoryID           string `json:"story_id,omitempty"`
	Content           string `json:"content"`
	TokenCost         int    `json:"token_cost"`
	SummaryFromAction string `json:"summary_from_action"`
	Summary           string `json:"summary"`
	SummaryTokenCost  int    `json:"summary_token_cost"`
	UpdatedAt         int64  `json:"updated_at"`
}

// LogEntry is one edit_log row.
type LogEntry struct {
	ID          string
	ParagraphID string
	Selector    string
	Action      string
	Column      string
	OldText     *string
	NewText     *string
	AppliedAt   int64
}

// Store is the story database handle.
type Store struct {
	DB *sql.DB
}

// Open opens (or creates) the story database at path and applies the
// schema.
func Open(path string, opts ...dbopen.Option) (*Store, error) {
	allOpts := append([]dbopen.Option{
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(Schema),
	}, opts...)

	db, err := dbopen.Open(path, allOpts...)
	if err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.DB.Close()
}

// CurrentText returns col's value for a paragraph. ok is false when the
// row does not exist.
func CurrentText(ctx context.Context, tx *sql.Tx, id string, col Column) (text string, ok bool, err error) {
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM story_paragraphs WHERE id = ?`, col.Text), id).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("store: read %s: %w", id, err)
	}
	return text, true, nil
}

// WriteText overwrites col and its token cost on an existing row. It
// reports whether a row was updated.
func WriteText(ctx context.Context, tx *sql.Tx, id string, col Column, text string, tokens int, now int64) (bool, error) {
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE story_paragraphs SET %s = ?, %s = ?, updated_at = ? WHERE id = ?`, col.Text, col.Token),
		text, tokens, now, id)
	if err != nil {
		return false, fmt.Errorf("store: update %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// InsertParagraph creates a row holding text in col.
func InsertParagraph(ctx context.Context, tx *sql.Tx, id string, storyID *string, col Column, text string, tokens int, now int64) error {
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO story_paragraphs (id, story_id, %s, %s, updated_at) VALUES (?, ?, ?, ?, ?)`, col.Text, col.Token),
		id, storyID, text, tokens, now)
	if err != nil {
		return fmt.Errorf("store: insert %s: %w", id, err)
	}
	return nil
}

// DeleteParagraph removes a row. It reports whether one existed.
func DeleteParagraph(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM story_paragraphs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("store: delete %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// AppendLog records an applied edit.
func AppendLog(ctx context.Context, tx *sql.Tx, e LogEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO edit_log (id, paragraph_id, selector, action, column_name, old_text, new_text, applied_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ParagraphID, e.Selector, e.Action, e.Column, e.OldText, e.NewText, e.AppliedAt)
	if err != nil {
		return fmt.Errorf("store: append edit log: %w", err)
	}
	return nil
}

// Paragraphs lists the rows of a story in id order.
func (s *Store) Paragraphs(ctx context.Context, storyID string) ([]Paragraph, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, COALESCE(story_id, ''), content, token_cost, summary_from_action,
		       summary, summary_token_cost, updated_at
		FROM story_paragraphs WHERE story_id = ? ORDER BY id`, storyID)
	if err != nil {
		return nil, fmt.Errorf("store: list paragraphs: %w", err)
	}
	defer rows.Close()

	var out []Paragraph
	for rows.Next() {
		var p Paragraph
		if err := rows.Scan(&p.ID, &p.StoryID, &p.Content, &p.TokenCost, &p.SummaryFromAction,
			&p.Summary, &p.SummaryTokenCost, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store: scan paragraph: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetParagraph returns one row, or nil when absent.
func (s *Store) GetParagraph(ctx context.Context, id string) (*Paragraph, error) {
	var p Paragraph
	err := s.DB.QueryRowContext(ctx, `
		SELECT id, COALESCE(story_id, ''), content, token_cost, summary_from_action,
		       summary, summary_token_cost, updated_at
		FROM story_paragraphs WHERE id = ?`, id).Scan(&p.ID, &p.StoryID, &p.Content, &p.TokenCost,
		&p.SummaryFromAction, &p.Summary, &p.SummaryTokenCost, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get paragraph: %w", err)
	}
	return &p, nil
}

// EditLog returns the edit_log rows of a paragraph, oldest first.
func (s *Store) EditLog(ctx context.Context, paragraphID string) ([]LogEntry, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, paragraph_id, selector, action, column_name, old_text, new_text, applied_at
		FROM edit_log WHERE paragraph_id = ? ORDER BY applied_at, id`, paragraphID)
	if err != nil {
		return nil, fmt.Errorf("store: list edit log: %w", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.ID, &e.ParagraphID, &e.Selector, &e.Action, &e.Column,
			&e.OldText, &e.NewText, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("store: scan edit log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
