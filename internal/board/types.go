// Package board defines the shared kanban board model and the pure
// event reducer that advances it. All mutation of a board flows through
// Apply; nothing in this package performs I/O.
package board

// User identifies a connected collaborator.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Comment is an append-only note on a card. Comments are never edited
// or removed once applied.
type Comment struct {
	ID         string `json:"id"`
	CardID     string `json:"cardId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Content    string `json:"content"`
	CreatedAt  int64  `json:"createdAt"` // epoch milliseconds
}

// Card is one kanban card. Order positions the card within its column;
// uniqueness of Order values is not enforced, display sorts by them.
type Card struct {
	ID          string    `json:"id"`
	ColumnID    string    `json:"columnId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Order       int       `json:"order"`
	Comments    []Comment `json:"comments"`
	CreatedAt   int64     `json:"createdAt"` // epoch milliseconds
}

// Column is one kanban column. Order defines left-to-right position.
type Column struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Order int    `json:"order"`
}

// Board is the full state of one collaboration session. The hub's copy
// is authoritative; every client holds a replica reconciled by
// replaying broadcast events.
type Board struct {
	ID      string   `json:"id"`
	Columns []Column `json:"columns"`
	Cards   []Card   `json:"cards"`
}

// DefaultBoard returns the board served before any event has been
// stored: three fixed columns, no cards.
func DefaultBoard() *Board {
	return &Board{
		ID: "board-1",
		Columns: []Column{
			{ID: "col-todo", Title: "To Do", Order: 0},
			{ID: "col-progress", Title: "In Progress", Order: 1},
			{ID: "col-done", Title: "Done", Order: 2},
		},
		Cards: []Card{},
	}
}

// Clone returns a deep copy of the board. The copy shares no slices
// with the original, so mutating one never affects the other.
func (b *Board) Clone() *Board {
	next := &Board{
		ID:      b.ID,
		Columns: make([]Column, len(b.Columns)),
		Cards:   make([]Card, len(b.Cards)),
	}
	copy(next.Columns, b.Columns)
	for i, c := range b.Cards {
		if c.Comments != nil {
			comments := make([]Comment, len(c.Comments))
			copy(comments, c.Comments)
			c.Comments = comments
		}
		next.Cards[i] = c
	}
	return next
}

// findCard returns the index of the card with the given id, or -1.
func (b *Board) findCard(cardID string) int {
	for i := range b.Cards {
		if b.Cards[i].ID == cardID {
			return i
		}
	}
	return -1
}
