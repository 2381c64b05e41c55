package exam

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"
)

/* ---------------- in-memory fake satisfying Store ---------------- */

type fakeStore struct {
	users     map[string]User       // by lowercase email
	states    map[string]*ExamState // by state id
	byOwner   map[string]string     // userID|formID -> state id
	responses []Response
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:   map[string]User{},
		states:  map[string]*ExamState{},
		byOwner: map[string]string{},
	}
}

func ownerKey(userID, formID string) string { return userID + "|" + formID }

func (f *fakeStore) addUser(id, email, name, role string) User {
	u := User{ID: id, Email: email, Name: name, Role: role}
	f.users[email] = u
	return u
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (User, error) {
	u, ok := f.users[email]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

func (f *fakeStore) UpsertUser(_ context.Context, u User) (User, error) {
	if old, ok := f.users[u.Email]; ok {
		u.ID = old.ID
	}
	f.users[u.Email] = u
	return u, nil
}

func (f *fakeStore) GetState(_ context.Context, userID, formID string) (ExamState, error) {
	id, ok := f.byOwner[ownerKey(userID, formID)]
	if !ok {
		return ExamState{}, ErrNoState
	}
	return *f.states[id], nil
}

func (f *fakeStore) CreateState(ctx context.Context, s ExamState) (ExamState, error) {
	k := ownerKey(s.UserID, s.FormID)
	if id, ok := f.byOwner[k]; ok {
		return *f.states[id], nil
	}
	cp := s
	f.states[s.ID] = &cp
	f.byOwner[k] = s.ID
	return cp, nil
}

func (f *fakeStore) StartTimer(_ context.Context, stateID string, now time.Time) (bool, error) {
	st, ok := f.states[stateID]
	if !ok || st.Locked || st.StartedAt != nil {
		return false, nil
	}
	t := now
	st.StartedAt = &t
	st.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) LockIfUnlocked(_ context.Context, stateID string, now time.Time) (bool, error) {
	st, ok := f.states[stateID]
	if !ok || st.Locked {
		return false, nil
	}
	st.Locked = true
	st.UpdatedAt = now
	return true, nil
}

func (f *fakeStore) ResetState(_ context.Context, stateID, token string, startedAt *time.Time, now time.Time) (ExamState, error) {
	st, ok := f.states[stateID]
	if !ok {
		return ExamState{}, ErrNoState
	}
	st.AttemptToken = token
	st.StartedAt = startedAt
	st.Locked = false
	st.UpdatedAt = now
	return *st, nil
}

func (f *fakeStore) ResetStateByUser(_ context.Context, userID, formID, token string, now time.Time) error {
	if id, ok := f.byOwner[ownerKey(userID, formID)]; ok {
		st := f.states[id]
		st.AttemptToken = token
		st.StartedAt = nil
		st.Locked = false
		st.UpdatedAt = now
		return nil
	}
	id := fmt.Sprintf("state-%d", len(f.states)+1)
	f.states[id] = &ExamState{
		ID: id, UserID: userID, FormID: formID,
		AttemptToken: token, UpdatedAt: now,
	}
	f.byOwner[ownerKey(userID, formID)] = id
	return nil
}

func (f *fakeStore) ListStates(_ context.Context, formID string) ([]StateWithUser, error) {
	var out []StateWithUser
	for _, st := range f.states {
		if st.FormID != formID {
			continue
		}
		var owner User
		for _, u := range f.users {
			if u.ID == st.UserID {
				owner = u
			}
		}
		out = append(out, StateWithUser{State: *st, User: owner})
	}
	return out, nil
}

func (f *fakeStore) SubmitLocking(ctx context.Context, stateID string, resp Response) (bool, error) {
	ok, err := f.LockIfUnlocked(ctx, stateID, resp.CreatedAt)
	if err != nil || !ok {
		return false, err
	}
	f.responses = append(f.responses, resp)
	return true, nil
}

func (f *fakeStore) SubmitResetting(_ context.Context, stateID, newToken string, resp Response) error {
	st, ok := f.states[stateID]
	if !ok {
		return ErrNoState
	}
	f.responses = append(f.responses, resp)
	st.AttemptToken = newToken
	st.StartedAt = nil
	st.Locked = false
	st.UpdatedAt = resp.CreatedAt
	return nil
}

func (f *fakeStore) ListResponses(_ context.Context, formID string, limit int) ([]Response, error) {
	var out []Response
	for i := len(f.responses) - 1; i >= 0 && len(out) < limit; i-- {
		if f.responses[i].FormID == formID {
			out = append(out, f.responses[i])
		}
	}
	return out, nil
}

func (f *fakeStore) ListAllResponses(_ context.Context, limit int) ([]Response, error) {
	var out []Response
	for i := len(f.responses) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, f.responses[i])
	}
	return out, nil
}

func (f *fakeStore) LatestResponsesByUser(_ context.Context, formID string, userIDs []string) (map[string]Response, error) {
	want := map[string]bool{}
	for _, id := range userIDs {
		want[id] = true
	}
	latest := map[string]Response{}
	for i := len(f.responses) - 1; i >= 0; i-- {
		r := f.responses[i]
		if r.FormID != formID || !want[r.UserID] {
			continue
		}
		if _, ok := latest[r.UserID]; !ok {
			latest[r.UserID] = r
		}
	}
	return latest, nil
}

/* ---------------- harness ---------------- */

type harness struct {
	store *fakeStore
	svc   *Service
	clock time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store: newFakeStore(),
		clock: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	h.svc = NewService(h.store)
	h.svc.now = func() time.Time { return h.clock }
	tokens := 0
	h.svc.newToken = func() string {
		tokens++
		return fmt.Sprintf("token-%d", tokens)
	}
	h.store.addUser("u1", "alice@example.com", "Alice", RoleUser)
	h.store.addUser("a1", "root@example.com", "Root", RoleAdmin)
	return h
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func (h *harness) user() Identity  { return Identity{Email: "alice@example.com", Role: RoleUser} }
func (h *harness) admin() Identity { return Identity{Email: "root@example.com", Role: RoleAdmin} }

func goodAnswers() []string {
	out := make([]string, len(Questions))
	for i, q := range Questions {
		out[i] = q.Keywords[0]
	}
	return out
}

/* ---------------- lifecycle: state read ---------------- */

func TestFirstReadStartsTimer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	view, err := h.svc.GetOrInitState(ctx, h.user(), false)
	if err != nil {
		t.Fatalf("GetOrInitState: %v", err)
	}
	if view.Locked || view.Expired {
		t.Fatalf("fresh state locked/expired: %+v", view)
	}
	if view.StartedAt == nil || !view.StartedAt.Equal(h.clock) {
		t.Fatalf("startedAt = %v, want %v", view.StartedAt, h.clock)
	}
	want := h.clock.Add(Duration)
	if view.ExpiresAt == nil || !view.ExpiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", view.ExpiresAt, want)
	}
	if view.AttemptToken == "" {
		t.Fatal("no attempt token issued")
	}
}

func TestRepeatedReadsDoNotRestartTimer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, _ := h.svc.GetOrInitState(ctx, h.user(), false)
	h.advance(5 * time.Minute)
	second, err := h.svc.GetOrInitState(ctx, h.user(), false)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !second.StartedAt.Equal(*first.StartedAt) {
		t.Fatalf("poll re-extended timer: %v -> %v", first.StartedAt, second.StartedAt)
	}
	if second.AttemptToken != first.AttemptToken {
		t.Fatalf("poll rotated token: %q -> %q", first.AttemptToken, second.AttemptToken)
	}
}

func TestUserResetFlagIgnored(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, _ := h.svc.GetOrInitState(ctx, h.user(), false)
	h.advance(time.Minute)
	second, _ := h.svc.GetOrInitState(ctx, h.user(), true)
	if !second.StartedAt.Equal(*first.StartedAt) || second.AttemptToken != first.AttemptToken {
		t.Fatalf("reset=1 mutated a USER attempt: %+v vs %+v", first, second)
	}
}

func TestExpiredUserReadIsReadOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.svc.GetOrInitState(ctx, h.user(), false)
	h.advance(Duration + time.Minute)
	view, err := h.svc.GetOrInitState(ctx, h.user(), false)
	if err != nil {
		t.Fatalf("read after expiry: %v", err)
	}
	if !view.Expired {
		t.Fatal("expired not derived")
	}
	if view.Locked {
		t.Fatal("state read locked the row; only a late submit may do that")
	}
}

func TestAdminAutoReopen(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, _ := h.svc.GetOrInitState(ctx, h.admin(), false)
	h.advance(Duration + time.Minute)
	second, err := h.svc.GetOrInitState(ctx, h.admin(), false)
	if err != nil {
		t.Fatalf("admin reopen: %v", err)
	}
	if second.Expired || second.Locked {
		t.Fatalf("admin round not reopened: %+v", second)
	}
	if second.AttemptToken == first.AttemptToken {
		t.Fatal("reopen kept the old token")
	}
	if !second.StartedAt.Equal(h.clock) {
		t.Fatalf("reopen startedAt = %v, want %v", second.StartedAt, h.clock)
	}
}

func TestAdminManualReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first, _ := h.svc.GetOrInitState(ctx, h.admin(), false)
	h.advance(2 * time.Minute)
	// Mid-round, nothing wrong with the attempt: reset=1 still restarts.
	second, err := h.svc.GetOrInitState(ctx, h.admin(), true)
	if err != nil {
		t.Fatalf("manual reset: %v", err)
	}
	if second.AttemptToken == first.AttemptToken || !second.StartedAt.Equal(h.clock) {
		t.Fatalf("manual reset did not restart the round: %+v", second)
	}
}

func TestUnknownUserGetsNotFound(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.GetOrInitState(context.Background(), Identity{Email: "ghost@example.com", Role: RoleUser}, false)
	if err != ErrUserNotFound {
		t.Fatalf("err = %v, want ErrUserNotFound", err)
	}
}

/* ---------------- lifecycle: submit ---------------- */

func TestSubmitAnswerCountMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.GetOrInitState(ctx, h.user(), false)

	before, _ := h.store.GetState(ctx, "u1", FormID)
	_, err := h.svc.Submit(ctx, h.user(), []string{"just one"})
	if err != ErrBadAnswers {
		t.Fatalf("err = %v, want ErrBadAnswers", err)
	}
	after, _ := h.store.GetState(ctx, "u1", FormID)
	if after != before {
		t.Fatalf("rejected submit mutated state: %+v vs %+v", before, after)
	}
	if len(h.store.responses) != 0 {
		t.Fatal("rejected submit created a response")
	}
}

func TestSubmitWithoutStateRejected(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.Submit(context.Background(), h.user(), goodAnswers())
	if err != ErrNoState {
		t.Fatalf("err = %v, want ErrNoState", err)
	}
}

func TestSubmitNotStarted(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	// Unlock creates the row with a cleared timer; submitting before the
	// next state read must fail.
	if err := h.svc.Unlock(ctx, "root@example.com", "alice@example.com"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	_, err := h.svc.Submit(ctx, h.user(), goodAnswers())
	if err != ErrNotStarted {
		t.Fatalf("err = %v, want ErrNotStarted", err)
	}
}

func TestUserSubmitLocksAndRejectsRepeat(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.GetOrInitState(ctx, h.user(), false)
	h.advance(10 * time.Minute)

	resp, err := h.svc.Submit(ctx, h.user(), goodAnswers())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if resp.Percent != 100 || resp.Level != "Excellent" {
		t.Fatalf("all-correct submission scored %+v", resp)
	}
	st, _ := h.store.GetState(ctx, "u1", FormID)
	if !st.Locked {
		t.Fatal("submission did not lock the row")
	}

	if _, err := h.svc.Submit(ctx, h.user(), goodAnswers()); err != ErrLocked {
		t.Fatalf("repeat err = %v, want ErrLocked", err)
	}
	if len(h.store.responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(h.store.responses))
	}
}

func TestLateSubmitLocksThenConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.GetOrInitState(ctx, h.user(), false)
	h.advance(Duration + time.Second)

	if _, err := h.svc.Submit(ctx, h.user(), goodAnswers()); err != ErrExpired {
		t.Fatalf("late submit err = %v, want ErrExpired", err)
	}
	st, _ := h.store.GetState(ctx, "u1", FormID)
	if !st.Locked {
		t.Fatal("late submit did not finalize the lock")
	}
	if len(h.store.responses) != 0 {
		t.Fatal("late submit created a response")
	}
	// Second try hits the lock, not the timer.
	if _, err := h.svc.Submit(ctx, h.user(), goodAnswers()); err != ErrLocked {
		t.Fatalf("second late submit err = %v, want ErrLocked", err)
	}
}

func TestAdminSubmitsRepeatedly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	for round := 1; round <= 3; round++ {
		view, err := h.svc.GetOrInitState(ctx, h.admin(), false)
		if err != nil {
			t.Fatalf("round %d read: %v", round, err)
		}
		if view.StartedAt == nil || !view.StartedAt.Equal(h.clock) {
			t.Fatalf("round %d did not start a fresh timer: %+v", round, view)
		}
		h.advance(time.Minute)
		if _, err := h.svc.Submit(ctx, h.admin(), goodAnswers()); err != nil {
			t.Fatalf("round %d submit: %v", round, err)
		}
		st, _ := h.store.GetState(ctx, "a1", FormID)
		if st.Locked || st.StartedAt != nil {
			t.Fatalf("round %d did not reset the row: %+v", round, st)
		}
		h.advance(time.Minute)
	}
	if len(h.store.responses) != 3 {
		t.Fatalf("responses = %d, want 3", len(h.store.responses))
	}
}

func TestAdminSubmitAfterExpiryAllowed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.GetOrInitState(ctx, h.admin(), false)
	h.advance(Duration + time.Minute)

	if _, err := h.svc.Submit(ctx, h.admin(), goodAnswers()); err != nil {
		t.Fatalf("admin late submit rejected: %v", err)
	}
}

func TestSubmitStampsAttemptMeta(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	view, _ := h.svc.GetOrInitState(ctx, h.user(), false)
	h.advance(time.Minute)

	resp, err := h.svc.Submit(ctx, h.user(), goodAnswers())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	for _, frag := range []string{view.AttemptToken, `"_meta"`, `"answers"`} {
		if !strings.Contains(resp.Answers, frag) {
			t.Fatalf("answers payload missing %q: %s", frag, resp.Answers)
		}
	}
}

/* ---------------- unlock ---------------- */

func TestUnlockResetsLockedUser(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.GetOrInitState(ctx, h.user(), false)
	h.advance(time.Minute)
	h.svc.Submit(ctx, h.user(), goodAnswers())

	if err := h.svc.Unlock(ctx, "root@example.com", "alice@example.com"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	st, _ := h.store.GetState(ctx, "u1", FormID)
	if st.Locked || st.StartedAt != nil {
		t.Fatalf("unlock left %+v", st)
	}

	// Next read starts a fresh timed round.
	view, err := h.svc.GetOrInitState(ctx, h.user(), false)
	if err != nil {
		t.Fatalf("read after unlock: %v", err)
	}
	if view.Locked || view.StartedAt == nil || !view.StartedAt.Equal(h.clock) {
		t.Fatalf("fresh round not started: %+v", view)
	}
}

func TestUnlockIdempotentExceptToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.GetOrInitState(ctx, h.user(), false)

	h.svc.Unlock(ctx, "root@example.com", "alice@example.com")
	first, _ := h.store.GetState(ctx, "u1", FormID)
	h.svc.Unlock(ctx, "root@example.com", "alice@example.com")
	second, _ := h.store.GetState(ctx, "u1", FormID)

	if first.Locked != second.Locked || (first.StartedAt != nil) != (second.StartedAt != nil) {
		t.Fatalf("unlock not idempotent: %+v vs %+v", first, second)
	}
	if first.AttemptToken == second.AttemptToken {
		t.Fatal("unlock did not rotate the token")
	}
}

func TestUnlockAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.svc.Unlock(ctx, "alice@example.com", "root@example.com"); err != ErrForbidden {
		t.Fatalf("non-admin unlock err = %v, want ErrForbidden", err)
	}
	if err := h.svc.Unlock(ctx, "root@example.com", "ghost@example.com"); err != ErrUserNotFound {
		t.Fatalf("unknown target err = %v, want ErrUserNotFound", err)
	}
}

/* ---------------- admin aggregation ---------------- */

func TestStateItemsClassification(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// alice: submitted. root: in progress.
	h.svc.GetOrInitState(ctx, h.user(), false)
	h.advance(time.Minute)
	h.svc.Submit(ctx, h.user(), goodAnswers())
	h.svc.GetOrInitState(ctx, h.admin(), false)

	items, err := h.svc.StateItems(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("StateItems: %v", err)
	}
	byEmail := map[string]StateItem{}
	for _, it := range items {
		byEmail[it.User.Email] = it
	}

	if got := byEmail["alice@example.com"].Status; got != StatusSubmitted {
		t.Fatalf("alice status = %q, want %q", got, StatusSubmitted)
	}
	if byEmail["alice@example.com"].Latest == nil {
		t.Fatal("alice latest response missing")
	}
	if got := byEmail["root@example.com"].Status; got != StatusInProgress {
		t.Fatalf("root status = %q, want %q", got, StatusInProgress)
	}

	// A timer that runs out unsubmitted flips the classification only.
	h.advance(Duration + time.Minute)
	items, _ = h.svc.StateItems(ctx, "root@example.com")
	for _, it := range items {
		if it.User.Email == "root@example.com" && it.Status != StatusTimedOut {
			t.Fatalf("root status after expiry = %q, want %q", it.Status, StatusTimedOut)
		}
	}
}

func TestStateItemsRequiresDBAdmin(t *testing.T) {
	h := newHarness(t)
	if _, err := h.svc.StateItems(context.Background(), "alice@example.com"); err != ErrForbidden {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestAttemptsOverview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.svc.GetOrInitState(ctx, h.user(), false)
	h.advance(time.Minute)
	h.svc.Submit(ctx, h.user(), goodAnswers())

	ov, err := h.svc.AttemptsOverview(ctx)
	if err != nil {
		t.Fatalf("AttemptsOverview: %v", err)
	}
	if len(ov.Responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(ov.Responses))
	}
	if ov.Responses[0].User == nil || ov.Responses[0].User.Email != "alice@example.com" {
		t.Fatalf("response owner not joined: %+v", ov.Responses[0].User)
	}
	sum, ok := ov.StateMap["alice@example.com"]
	if !ok || !sum.Locked {
		t.Fatalf("state map entry = %+v, ok=%v", sum, ok)
	}
}
