package exam

// ReadAction is what GetOrInitState should do with an existing row.
type ReadAction int

const (
	ReadNoop ReadAction = iota
	ReadStartTimer
	ReadReopen
)

// SubmitOutcome is what a passing submission does to the attempt row.
type SubmitOutcome int

const (
	SubmitLock  SubmitOutcome = iota // one submission per unlock cycle
	SubmitReset                      // fresh round, timer restarts on next read
)

// AttemptPolicy localizes the role-divergent lifecycle rules. One
// implementation per role; the engine itself stays role-agnostic.
type AttemptPolicy interface {
	// OnRead decides the state-read mutation. reset is the admin-only
	// manual restart flag.
	OnRead(s ExamState, expired, reset bool) ReadAction
	// OnSubmit validates the row against this role's submission rules
	// and picks the post-submission transition. The returned error is
	// one of the package sentinels.
	OnSubmit(s ExamState, expired bool) (SubmitOutcome, error)
}

// UserPolicy: one timed round per unlock cycle. The timer starts on the
// first read after creation or unlock and never restarts; a late submit
// finalizes the lock.
type UserPolicy struct{}

func (UserPolicy) OnRead(s ExamState, expired, reset bool) ReadAction {
	if !s.Locked && s.StartedAt == nil {
		return ReadStartTimer
	}
	return ReadNoop
}

func (UserPolicy) OnSubmit(s ExamState, expired bool) (SubmitOutcome, error) {
	if s.Locked {
		return 0, ErrLocked
	}
	if s.StartedAt == nil {
		return 0, ErrNotStarted
	}
	if expired {
		return 0, ErrExpired
	}
	return SubmitLock, nil
}

// AdminPolicy: admins re-enter the form indefinitely for testing and demo.
// Reads reopen expired or locked rounds, expiry never blocks a submit, and
// every submission resets the row for the next round.
type AdminPolicy struct{}

func (AdminPolicy) OnRead(s ExamState, expired, reset bool) ReadAction {
	if reset {
		return ReadReopen
	}
	if expired || s.Locked {
		return ReadReopen
	}
	if s.StartedAt == nil {
		return ReadStartTimer
	}
	return ReadNoop
}

func (AdminPolicy) OnSubmit(s ExamState, expired bool) (SubmitOutcome, error) {
	if s.StartedAt == nil {
		return 0, ErrNotStarted
	}
	return SubmitReset, nil
}

// PolicyFor selects the policy for a role. Unknown roles get the
// restrictive user rules.
func PolicyFor(role string) AttemptPolicy {
	if role == RoleAdmin {
		return AdminPolicy{}
	}
	return UserPolicy{}
}
