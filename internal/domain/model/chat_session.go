package model

import (
	"fmt"
)

// PreviewMaxRunes bounds the sidebar preview of a session.
const PreviewMaxRunes = 50

const ellipsis = "..."

type SessionState string

const (
	SessionEmpty  SessionState = "empty"
	SessionActive SessionState = "active"
)

// Session is one conversation thread. Seq is the number behind Label and
// Revision counts ledger writes so external mirrors can order snapshots.
type Session struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Seq      int    `json:"seq"`
	Preview  string `json:"preview"`
	Messages Ledger `json:"messages"`
	Revision int64  `json:"revision"`
}

// NewSession builds an empty session with the label for seq.
func NewSession(id string, seq int, preview string) Session {
	return Session{
		ID:      id,
		Label:   SessionLabel(seq),
		Seq:     seq,
		Preview: PreviewOf(preview),
	}
}

// State moves from empty to active once the first message lands; nothing in
// the registry removes messages, so the transition is one-way.
func (s Session) State() SessionState {
	if s.Messages.Len() == 0 {
		return SessionEmpty
	}
	return SessionActive
}

func SessionLabel(seq int) string {
	return fmt.Sprintf("Chat %d", seq)
}

// PreviewOf derives a session preview from the opening user message.
func PreviewOf(text string) string {
	return Truncate(text, PreviewMaxRunes)
}

// Truncate cuts s to max runes, appending "..." when anything was cut.
func Truncate(s string, max int) string {
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	return string(r[:max]) + ellipsis
}
