package model

import (
	"fmt"
	"sort"

	"gator-course-advisor/internal/domain"
)

// Registry is the set of sessions, newest first, plus the active session id.
// Like Ledger it is a value: every operation returns the next registry.
type Registry struct {
	sessions []Session
	active   string
	lastSeq  int
}

func NewRegistry() Registry { return Registry{} }

// CreateSession inserts an empty session at the front, gives it the next
// label and makes it active.
func (r Registry) CreateSession(id, initialPreview string) (Registry, error) {
	if id == "" {
		return r, domain.ErrInvalidArgument
	}
	if r.index(id) >= 0 {
		return r, fmt.Errorf("create session %q: %w", id, domain.ErrAlreadyExists)
	}
	seq := r.lastSeq + 1
	next := make([]Session, 0, len(r.sessions)+1)
	next = append(next, NewSession(id, seq, initialPreview))
	next = append(next, r.sessions...)
	return Registry{sessions: next, active: id, lastSeq: seq}, nil
}

// SetActive changes the current conversation.
func (r Registry) SetActive(id string) (Registry, error) {
	if r.index(id) < 0 {
		return r, fmt.Errorf("session %q: %w", id, domain.ErrNotFound)
	}
	r.active = id
	return r, nil
}

// RecordMessages stores ledger on the session. Missing sessions are ignored.
func (r Registry) RecordMessages(id string, ledger Ledger) Registry {
	return r.update(id, func(s *Session) {
		s.Messages = ledger
		s.Revision++
	})
}

// UpdatePreviewIfEmpty sets the preview from text unless one is already set.
func (r Registry) UpdatePreviewIfEmpty(id, text string) Registry {
	idx := r.index(id)
	if idx < 0 || r.sessions[idx].Preview != "" {
		return r
	}
	return r.update(id, func(s *Session) { s.Preview = PreviewOf(text) })
}

// Remove drops a session. Labels already handed out are never reused.
func (r Registry) Remove(id string) Registry {
	idx := r.index(id)
	if idx < 0 {
		return r
	}
	next := make([]Session, 0, len(r.sessions)-1)
	next = append(next, r.sessions[:idx]...)
	next = append(next, r.sessions[idx+1:]...)
	out := Registry{sessions: next, active: r.active, lastSeq: r.lastSeq}
	if out.active == id {
		out.active = ""
	}
	return out
}

// Restore merges sessions loaded from an external store. Known ids are kept
// as they are; the label counter continues after the highest restored Seq.
func (r Registry) Restore(sessions []Session) Registry {
	next := append([]Session(nil), r.sessions...)
	lastSeq := r.lastSeq
	seen := make(map[string]struct{}, len(next)+len(sessions))
	for _, s := range next {
		seen[s.ID] = struct{}{}
	}
	for _, s := range sessions {
		if _, ok := seen[s.ID]; ok || s.ID == "" {
			continue
		}
		seen[s.ID] = struct{}{}
		next = append(next, s)
		if s.Seq > lastSeq {
			lastSeq = s.Seq
		}
	}
	sort.SliceStable(next, func(i, j int) bool { return next[i].Seq > next[j].Seq })
	return Registry{sessions: next, active: r.active, lastSeq: lastSeq}
}

func (r Registry) Session(id string) (Session, bool) {
	if idx := r.index(id); idx >= 0 {
		return r.sessions[idx], true
	}
	return Session{}, false
}

// Active returns the active session, if any.
func (r Registry) Active() (Session, bool) {
	if r.active == "" {
		return Session{}, false
	}
	return r.Session(r.active)
}

func (r Registry) ActiveID() string { return r.active }

// Sessions returns all sessions, newest first.
func (r Registry) Sessions() []Session {
	return append([]Session(nil), r.sessions...)
}

func (r Registry) Len() int { return len(r.sessions) }

func (r Registry) update(id string, fn func(s *Session)) Registry {
	idx := r.index(id)
	if idx < 0 {
		return r
	}
	next := make([]Session, len(r.sessions))
	copy(next, r.sessions)
	fn(&next[idx])
	return Registry{sessions: next, active: r.active, lastSeq: r.lastSeq}
}

func (r Registry) index(id string) int {
	for i := range r.sessions {
		if r.sessions[i].ID == id {
			return i
		}
	}
	return -1
}
