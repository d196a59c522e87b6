package repository

import (
	"context"

	"gator-course-advisor/internal/domain/model"
)

// -----------------------------
// Chat Sessions
// -----------------------------

// SessionSnapshotStore mirrors session records outside the process. Save must
// ignore a snapshot whose Revision is not newer than the stored one. Delete
// leaves a tombstone: later saves for that id are ignored and LoadAll skips it.
type SessionSnapshotStore interface {
	Save(ctx context.Context, session model.Session) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]model.Session, error)
}
