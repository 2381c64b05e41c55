package exam

import (
	"context"
	"time"
)

// StateWithUser is an attempt row joined with its owner, as the admin read
// paths consume it.
type StateWithUser struct {
	State ExamState
	User  User
}

// Store is the persistence port of the attempt lifecycle. All conditional
// mutations report whether they won the row (rows-affected > 0) so the
// service can serialize racing requests without read-then-write gaps.
type Store interface {
	// Users
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpsertUser(ctx context.Context, u User) (User, error)

	// Attempt state
	GetState(ctx context.Context, userID, formID string) (ExamState, error)
	// CreateState inserts the row unless the (user, form) pair already
	// exists, then returns whichever row is current. Safe under
	// concurrent first reads.
	CreateState(ctx context.Context, s ExamState) (ExamState, error)
	// StartTimer sets started_at only while the row is unlocked and the
	// timer is not running. Repeated polls cannot re-extend it.
	StartTimer(ctx context.Context, stateID string, now time.Time) (bool, error)
	// LockIfUnlocked flips locked, once.
	LockIfUnlocked(ctx context.Context, stateID string, now time.Time) (bool, error)
	// ResetState unconditionally rotates the token and rewrites
	// started_at/locked (admin reset, auto-reopen).
	ResetState(ctx context.Context, stateID, token string, startedAt *time.Time, now time.Time) (ExamState, error)
	// ResetStateByUser upserts the reset row for unlock: the target may
	// not have an attempt row yet.
	ResetStateByUser(ctx context.Context, userID, formID, token string, now time.Time) error
	ListStates(ctx context.Context, formID string) ([]StateWithUser, error)

	// Responses
	// SubmitLocking locks the row and appends the response in one
	// transaction; returns false (and writes nothing) when another
	// request already holds the lock.
	SubmitLocking(ctx context.Context, stateID string, resp Response) (bool, error)
	// SubmitResetting appends the response and resets the row to a fresh
	// round in one transaction. Used for repeat-capable submitters.
	SubmitResetting(ctx context.Context, stateID, newToken string, resp Response) error
	ListResponses(ctx context.Context, formID string, limit int) ([]Response, error)
	ListAllResponses(ctx context.Context, limit int) ([]Response, error)
	// LatestResponsesByUser is the single shared latest-per-user
	// reduction every admin view goes through.
	LatestResponsesByUser(ctx context.Context, formID string, userIDs []string) (map[string]Response, error)
}
