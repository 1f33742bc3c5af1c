package candidate

import (
	"strings"

	"github.com/hazyhaar/storyedit/editwatch/record"
)

type index struct {
	list  []Paragraph
	byID  map[string]Paragraph
	byPos map[int]Paragraph
}

func newIndex(list []Paragraph) index {
	ix := index{list: list, byID: make(map[string]Paragraph), byPos: make(map[int]Paragraph, len(list))}
	for _, p := range list {
		if p.ID != nil {
			ix.byID[*p.ID] = p
		}
		ix.byPos[p.Index] = p
	}
	return ix
}

// counterpart finds p's match in ix. A paragraph with an id is matched by
// id only; one without is matched by position.
func (ix index) counterpart(p Paragraph) (Paragraph, bool) {
	if p.ID != nil {
		q, ok := ix.byID[*p.ID]
		return q, ok
	}
	q, ok := ix.byPos[p.Index]
	return q, ok
}

// CompareRegion diffs one region. Deletes and updates come first in
// server order, then inserts in user order.
func CompareRegion(selector string, server, user []Paragraph) []record.Diff {
	sx, ux := newIndex(server), newIndex(user)
	var diffs []record.Diff

	for _, sp := range sx.list {
		up, ok := ux.counterpart(sp)
		if !ok {
			diffs = append(diffs, record.Diff{
				Selector:     selector,
				Action:       record.ActionDelete,
				ParagraphID:  sp.ID,
				StoryKey:     sp.StoryKey,
				OriginalText: record.String(sp.Text),
				NewText:      record.DeleteText,
			})
			continue
		}
		if TextEqual(sp.Text, up.Text) {
			continue
		}
		diffs = append(diffs, record.Diff{
			Selector:     selector,
			Action:       record.ActionUpdate,
			ParagraphID:  firstSet(up.ID, sp.ID),
			StoryKey:     firstSet(up.StoryKey, sp.StoryKey),
			OriginalText: record.String(sp.Text),
			NewText:      up.Text,
		})
	}

	for _, up := range ux.list {
		if _, ok := sx.counterpart(up); ok {
			continue
		}
		diffs = append(diffs, record.Diff{
			Selector:    selector,
			Action:      record.ActionInsert,
			ParagraphID: up.ID,
			StoryKey:    up.StoryKey,
			NewText:     up.Text,
		})
	}
	return diffs
}

// filter drops blank inserts and updates that normalise to no change.
func filter(diffs []record.Diff) []record.Diff {
	out := diffs[:0]
	for _, d := range diffs {
		switch d.Action {
		case record.ActionInsert:
			if strings.TrimSpace(d.NewText) == "" {
				continue
			}
		case record.ActionUpdate:
			if d.OriginalText != nil && TextEqual(*d.OriginalText, d.NewText) {
				continue
			}
		}
		out = append(out, d)
	}
	return out
}

func firstSet(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}
