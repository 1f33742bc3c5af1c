package record

// Action is the kind of paragraph-level change a Diff describes.
type Action string

const (
	ActionInsert Action = "insert" // paragraph only in the user snapshot
	ActionUpdate Action = "update" // paragraph in both, text differs; user text wins
	ActionDelete Action = "delete" // paragraph only in the server snapshot
)

// DeleteText is the NewText carried by every delete diff.
const DeleteText = "DELETE"

// Diff is one candidate change for a single paragraph of a region.
type Diff struct {
	Selector     string  `json:"selector"`
	Action       Action  `json:"action"`
	ParagraphID  *string `json:"paragraphId"`
	StoryKey     *string `json:"storyKey"`
	OriginalText *string `json:"originalText,omitempty"`
	NewText      string  `json:"newText"`
}

// Candidate is the artifact attached to the next outgoing request. It is
// never persisted with an empty Diffs list: a missing key means nothing is
// pending.
type Candidate struct {
	Timestamp string `json:"timestamp"`
	Diffs     []Diff `json:"diffs"`
}

// Empty reports whether c carries no diffs. A nil candidate is empty.
func (c *Candidate) Empty() bool {
	return c == nil || len(c.Diffs) == 0
}
