package exam

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is the resolved caller: a lowercase email plus the role carried
// by the session token. Privileged mutations re-check the role against the
// users table instead of trusting the session claim.
type Identity struct {
	Email string
	Role  string
}

// Service is the attempt lifecycle engine. All timing decisions compare
// wall time against the persisted started_at, read fresh on every call;
// there is no in-process timer state.
type Service struct {
	store Store

	now      func() time.Time
	newToken func() string
}

func NewService(store Store) *Service {
	return &Service{
		store:    store,
		now:      time.Now,
		newToken: uuid.NewString,
	}
}

func newID() string { return uuid.NewString() }

// GetOrInitState returns the caller's current attempt state, lazily
// creating the row on first read and applying the role policy's read-time
// transition. Safe to poll: once the timer runs, repeated calls cannot
// re-extend it.
func (svc *Service) GetOrInitState(ctx context.Context, ident Identity, reset bool) (StateView, error) {
	now := svc.now()
	user, err := svc.store.GetUserByEmail(ctx, strings.ToLower(ident.Email))
	if err != nil {
		return StateView{}, err
	}

	st, err := svc.store.GetState(ctx, user.ID, FormID)
	switch {
	case err == ErrNoState:
		st, err = svc.store.CreateState(ctx, ExamState{
			ID:           newID(),
			UserID:       user.ID,
			FormID:       FormID,
			AttemptToken: svc.newToken(),
			StartedAt:    &now,
			Locked:       false,
			UpdatedAt:    now,
		})
		if err != nil {
			return StateView{}, err
		}
	case err != nil:
		return StateView{}, err
	default:
		policy := PolicyFor(ident.Role)
		switch policy.OnRead(st, st.Expired(now), reset) {
		case ReadReopen:
			st, err = svc.store.ResetState(ctx, st.ID, svc.newToken(), &now, now)
			if err != nil {
				return StateView{}, err
			}
		case ReadStartTimer:
			// Conditional write: a racing poll may have started the
			// timer already, in which case the re-read below picks
			// up its start time.
			if _, err := svc.store.StartTimer(ctx, st.ID, now); err != nil {
				return StateView{}, err
			}
			st, err = svc.store.GetState(ctx, user.ID, FormID)
			if err != nil {
				return StateView{}, err
			}
		}
	}

	return StateView{
		Role:         ident.Role,
		Locked:       st.Locked,
		AttemptToken: st.AttemptToken,
		StartedAt:    st.StartedAt,
		ExpiresAt:    st.ExpiresAt(),
		Expired:      st.Expired(now),
	}, nil
}

// Submit validates the answer set against the caller's attempt, scores it,
// appends the Response and applies the role policy's post-submission
// transition, all within one store transaction. A late USER submit flips
// the lock as a side effect of the rejection.
func (svc *Service) Submit(ctx context.Context, ident Identity, answers []string) (Response, error) {
	if len(answers) != len(Questions) {
		return Response{}, ErrBadAnswers
	}
	now := svc.now()

	user, err := svc.store.GetUserByEmail(ctx, strings.ToLower(ident.Email))
	if err != nil {
		return Response{}, err
	}
	st, err := svc.store.GetState(ctx, user.ID, FormID)
	if err != nil {
		return Response{}, err
	}

	policy := PolicyFor(ident.Role)
	outcome, err := policy.OnSubmit(st, st.Expired(now))
	if err != nil {
		if err == ErrExpired {
			// Attempting a late submission is what finalizes the lock.
			if _, lockErr := svc.store.LockIfUnlocked(ctx, st.ID, now); lockErr != nil {
				return Response{}, lockErr
			}
		}
		return Response{}, err
	}

	result := Score(Questions, answers)
	payload, err := json.Marshal(AnswersPayload{
		Meta: AnswersMeta{
			AttemptToken: st.AttemptToken,
			StartedAt:    *st.StartedAt,
			ExpiresAt:    *st.ExpiresAt(),
		},
		Answers: answers,
	})
	if err != nil {
		return Response{}, err
	}

	name := user.Name
	if name == "" {
		name = user.Email
	}
	resp := Response{
		ID:         newID(),
		FormID:     FormID,
		UserID:     user.ID,
		Name:       name,
		CreatedAt:  now,
		TotalScore: result.TotalScore,
		MaxScore:   result.MaxScore,
		Percent:    result.Percent,
		Level:      result.Level,
		Tip:        result.Tip,
		Answers:    string(payload),
	}

	switch outcome {
	case SubmitLock:
		ok, err := svc.store.SubmitLocking(ctx, st.ID, resp)
		if err != nil {
			return Response{}, err
		}
		if !ok {
			// Lost a double-submit race; the winner's Response stands.
			return Response{}, ErrLocked
		}
	case SubmitReset:
		if err := svc.store.SubmitResetting(ctx, st.ID, svc.newToken(), resp); err != nil {
			return Response{}, err
		}
	}
	return resp, nil
}

// Unlock resets the target's attempt row so the next state read starts a
// fresh timed round. Caller role is verified against the database, not the
// session claim. Idempotent state-wise; the token rotates every call.
func (svc *Service) Unlock(ctx context.Context, callerEmail, targetEmail string) error {
	caller, err := svc.store.GetUserByEmail(ctx, strings.ToLower(callerEmail))
	if err != nil {
		return err
	}
	if caller.Role != RoleAdmin {
		return ErrForbidden
	}
	target, err := svc.store.GetUserByEmail(ctx, strings.ToLower(targetEmail))
	if err != nil {
		return err
	}
	return svc.store.ResetStateByUser(ctx, target.ID, FormID, svc.newToken(), svc.now())
}
