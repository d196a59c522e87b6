package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"gator-course-advisor/internal/domain"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PendingContent is shown in place of an assistant reply until retrieval completes.
const PendingContent = "Thinking..."

// TimestampLayout renders message timestamps as two-digit hour and minute.
const TimestampLayout = "15:04"

// Message is one entry in a ledger. Messages are values; a placeholder is
// never edited, it is located by ID and replaced by a new message.
type Message struct {
	ID        string   `json:"id"`
	Role      Role     `json:"role"`
	Content   string   `json:"content"`
	Courses   []Course `json:"courses,omitempty"`
	Timestamp string   `json:"timestamp"`
	Pending   bool     `json:"pending,omitempty"`
}

// NewUserMessage builds a user message.
func NewUserMessage(id, content, timestamp string) Message {
	return Message{ID: id, Role: RoleUser, Content: content, Timestamp: timestamp}
}

// NewPlaceholder builds the pending assistant message inserted on submission.
func NewPlaceholder(id, timestamp string) Message {
	return Message{ID: id, Role: RoleAssistant, Content: PendingContent, Timestamp: timestamp, Pending: true}
}

// NewAssistantMessage builds a final assistant reply. courses is copied.
func NewAssistantMessage(id, content string, courses []Course, timestamp string) Message {
	var cs []Course
	if len(courses) > 0 {
		cs = append([]Course(nil), courses...)
	}
	return Message{ID: id, Role: RoleAssistant, Content: content, Courses: cs, Timestamp: timestamp}
}

// Lines splits content on line breaks; each element renders as its own line.
func (m Message) Lines() []string {
	return strings.Split(m.Content, "\n")
}

// Ledger is the ordered, id-addressable message history of one session.
// All mutations return a new Ledger, leaving earlier snapshots untouched.
type Ledger struct {
	msgs []Message
}

// NewLedger returns a ledger holding msgs in order. It fails on duplicate ids.
func NewLedger(msgs ...Message) (Ledger, error) {
	var l Ledger
	var err error
	for _, m := range msgs {
		if l, err = l.Append(m); err != nil {
			return Ledger{}, err
		}
	}
	return l, nil
}

// Append adds msg at the end. A message whose id is already present is a
// programming error and is reported as ErrDuplicateMessageID.
func (l Ledger) Append(msg Message) (Ledger, error) {
	if l.Contains(msg.ID) {
		return l, fmt.Errorf("append %q: %w", msg.ID, domain.ErrDuplicateMessageID)
	}
	next := make([]Message, len(l.msgs), len(l.msgs)+1)
	copy(next, l.msgs)
	next = append(next, msg)
	return Ledger{msgs: next}, nil
}

// Replace substitutes the entry with the given id, keeping its position.
// When no entry matches the receiver is returned unchanged.
func (l Ledger) Replace(id string, msg Message) Ledger {
	idx := l.index(id)
	if idx < 0 {
		return l
	}
	next := make([]Message, len(l.msgs))
	copy(next, l.msgs)
	next[idx] = msg
	return Ledger{msgs: next}
}

func (l Ledger) Len() int { return len(l.msgs) }

func (l Ledger) Contains(id string) bool { return l.index(id) >= 0 }

func (l Ledger) Find(id string) (Message, bool) {
	if idx := l.index(id); idx >= 0 {
		return l.msgs[idx], true
	}
	return Message{}, false
}

// Messages returns a copy of the entries in order.
func (l Ledger) Messages() []Message {
	return append([]Message(nil), l.msgs...)
}

// Last returns up to n trailing messages.
func (l Ledger) Last(n int) []Message {
	if n <= 0 || len(l.msgs) <= n {
		return l.Messages()
	}
	return append([]Message(nil), l.msgs[len(l.msgs)-n:]...)
}

func (l Ledger) index(id string) int {
	for i := range l.msgs {
		if l.msgs[i].ID == id {
			return i
		}
	}
	return -1
}

// MarshalJSON encodes the ledger as a plain array of messages.
func (l Ledger) MarshalJSON() ([]byte, error) {
	if l.msgs == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l.msgs)
}

// UnmarshalJSON decodes an array of messages, rejecting duplicate ids.
func (l *Ledger) UnmarshalJSON(b []byte) error {
	var msgs []Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return err
	}
	next, err := NewLedger(msgs...)
	if err != nil {
		return err
	}
	*l = next
	return nil
}
