package board

import (
	"encoding/json"
	"fmt"
)

// Apply runs one mutation event against a board snapshot and returns
// the resulting snapshot. The input board is never mutated; callers may
// keep using it after the call. Events whose target card no longer
// exists are silent no-ops, which keeps the pipeline tolerant of
// duplicate or out-of-order delivery. Unknown kinds return
// ErrUnknownEvent.
func Apply(b *Board, ev Event) (*Board, error) {
	next := b.Clone()

	switch ev.Type {
	case EventCardCreate:
		var card Card
		if err := json.Unmarshal(ev.Payload, &card); err != nil {
			return nil, fmt.Errorf("board.Apply: decode card:create: %w", err)
		}
		// Dedup by id: a reconnect-triggered resend must not duplicate
		// the card.
		if next.findCard(card.ID) >= 0 {
			return next, nil
		}
		if card.Comments == nil {
			card.Comments = []Comment{}
		}
		next.Cards = append(next.Cards, card)

	case EventCardMove:
		var mv MovePayload
		if err := json.Unmarshal(ev.Payload, &mv); err != nil {
			return nil, fmt.Errorf("board.Apply: decode card:move: %w", err)
		}
		if i := next.findCard(mv.CardID); i >= 0 {
			next.Cards[i].ColumnID = mv.ColumnID
			next.Cards[i].Order = mv.Order
		}

	case EventCardUpdate:
		var patch CardPatch
		if err := json.Unmarshal(ev.Payload, &patch); err != nil {
			return nil, fmt.Errorf("board.Apply: decode card:update: %w", err)
		}
		if i := next.findCard(patch.ID); i >= 0 {
			mergeCard(&next.Cards[i], patch)
		}

	case EventCardDelete:
		var del DeletePayload
		if err := json.Unmarshal(ev.Payload, &del); err != nil {
			return nil, fmt.Errorf("board.Apply: decode card:delete: %w", err)
		}
		if i := next.findCard(del.CardID); i >= 0 {
			next.Cards = append(next.Cards[:i], next.Cards[i+1:]...)
		}

	case EventCardComment:
		var cm Comment
		if err := json.Unmarshal(ev.Payload, &cm); err != nil {
			return nil, fmt.Errorf("board.Apply: decode card:comment: %w", err)
		}
		if i := next.findCard(cm.CardID); i >= 0 {
			if !hasComment(next.Cards[i].Comments, cm.ID) {
				next.Cards[i].Comments = append(next.Cards[i].Comments, cm)
			}
		}

	default:
		return nil, fmt.Errorf("board.Apply: %q: %w", ev.Type, ErrUnknownEvent)
	}

	return next, nil
}

// mergeCard copies the set fields of a patch onto a card. The merge is
// enumerated field by field so that the id, creation timestamp, and
// comment list can never be overwritten by an update event.
func mergeCard(c *Card, p CardPatch) {
	if p.ColumnID != nil {
		c.ColumnID = *p.ColumnID
	}
	if p.Title != nil {
		c.Title = *p.Title
	}
	if p.Description != nil {
		c.Description = *p.Description
	}
	if p.Order != nil {
		c.Order = *p.Order
	}
}

func hasComment(comments []Comment, id string) bool {
	for i := range comments {
		if comments[i].ID == id {
			return true
		}
	}
	return false
}
