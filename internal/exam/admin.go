package exam

import (
	"context"
	"encoding/json"
	"strings"
)

// Read-side projections for the admin dashboards. Nothing in this file
// mutates attempt state.

// StateSummary is the per-email entry of the attempts overview.
type StateSummary struct {
	Role      string  `json:"role"`
	Locked    bool    `json:"locked"`
	StartedAt *string `json:"startedAt"`
	UpdatedAt string  `json:"updatedAt"`
}

// ResponseItem is a Response with its owner and raw answers attached, as
// the overview endpoint serves it.
type ResponseItem struct {
	Response
	User        *User           `json:"user,omitempty"`
	AnswersJSON json.RawMessage `json:"answersJson,omitempty"`
}

// AttemptsOverview is recent responses plus a state map keyed by lowercase
// email.
type AttemptsOverview struct {
	Responses []ResponseItem          `json:"responses"`
	StateMap  map[string]StateSummary `json:"stateMap"`
}

const overviewResponseCap = 300

// AttemptsOverview builds the bulk admin view: the most recent responses
// for the form and every user's attempt summary.
func (svc *Service) AttemptsOverview(ctx context.Context) (AttemptsOverview, error) {
	responses, err := svc.store.ListResponses(ctx, FormID, overviewResponseCap)
	if err != nil {
		return AttemptsOverview{}, err
	}
	states, err := svc.store.ListStates(ctx, FormID)
	if err != nil {
		return AttemptsOverview{}, err
	}

	usersByID := make(map[string]User, len(states))
	stateMap := make(map[string]StateSummary, len(states))
	for _, sw := range states {
		usersByID[sw.User.ID] = sw.User
		email := strings.ToLower(sw.User.Email)
		if email == "" {
			continue
		}
		var started *string
		if sw.State.StartedAt != nil {
			s := sw.State.StartedAt.UTC().Format(timeLayout)
			started = &s
		}
		stateMap[email] = StateSummary{
			Role:      sw.User.Role,
			Locked:    sw.State.Locked,
			StartedAt: started,
			UpdatedAt: sw.State.UpdatedAt.UTC().Format(timeLayout),
		}
	}

	items := make([]ResponseItem, 0, len(responses))
	for _, r := range responses {
		item := ResponseItem{Response: r}
		if u, ok := usersByID[r.UserID]; ok {
			u := u
			item.User = &u
		}
		if r.Answers != "" {
			item.AnswersJSON = json.RawMessage(r.Answers)
		}
		items = append(items, item)
	}
	return AttemptsOverview{Responses: items, StateMap: stateMap}, nil
}

// StateItems joins every attempt row with its owner and the owner's latest
// response, deriving expiry the same way the lifecycle does. Caller must be
// an ADMIN in the database; a stale session claim is not enough here.
func (svc *Service) StateItems(ctx context.Context, callerEmail string) ([]StateItem, error) {
	caller, err := svc.store.GetUserByEmail(ctx, strings.ToLower(callerEmail))
	if err != nil {
		return nil, err
	}
	if caller.Role != RoleAdmin {
		return nil, ErrForbidden
	}

	states, err := svc.store.ListStates(ctx, FormID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(states))
	for _, sw := range states {
		ids = append(ids, sw.User.ID)
	}
	latest, err := svc.store.LatestResponsesByUser(ctx, FormID, ids)
	if err != nil {
		return nil, err
	}

	now := svc.now()
	items := make([]StateItem, 0, len(states))
	for _, sw := range states {
		st := sw.State
		expired := st.Expired(now)
		item := StateItem{
			User: sw.User,
			State: StateDetail{
				ID:        st.ID,
				StartedAt: st.StartedAt,
				ExpiresAt: st.ExpiresAt(),
				Expired:   expired,
				Locked:    st.Locked,
				UpdatedAt: st.UpdatedAt,
			},
		}
		var latestResp *Response
		if r, ok := latest[sw.User.ID]; ok {
			r := r
			latestResp = &r
		}
		item.Latest = latestResp
		item.Status = classify(st, expired, latestResp)
		items = append(items, item)
	}
	return items, nil
}

// RecentResponses returns the newest rows for the export surfaces,
// unfiltered by form.
func (svc *Service) RecentResponses(ctx context.Context, limit int) ([]Response, error) {
	return svc.store.ListAllResponses(ctx, limit)
}

// classify buckets one attempt row for display. An active unexpired timer
// with no response from the current round counts as in progress; a timer
// that ran out without a submission is timed out.
func classify(st ExamState, expired bool, latest *Response) string {
	active := st.StartedAt != nil && !st.Locked && !expired
	currentRound := latest != nil && st.StartedAt != nil && latest.CreatedAt.After(*st.StartedAt)
	switch {
	case active && !currentRound:
		return StatusInProgress
	case latest != nil:
		return StatusSubmitted
	case expired || st.Locked:
		return StatusTimedOut
	default:
		return StatusNotStarted
	}
}

const timeLayout = "2006-01-02T15:04:05.000Z"
