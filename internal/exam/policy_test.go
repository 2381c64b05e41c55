package exam

import (
	"testing"
	"time"
)

func startedState(locked bool) ExamState {
	t := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return ExamState{ID: "s", AttemptToken: "t", StartedAt: &t, Locked: locked}
}

func TestUserPolicyOnRead(t *testing.T) {
	p := UserPolicy{}

	if got := p.OnRead(ExamState{}, false, false); got != ReadStartTimer {
		t.Fatalf("fresh row = %v, want ReadStartTimer", got)
	}
	if got := p.OnRead(startedState(false), false, false); got != ReadNoop {
		t.Fatalf("running timer = %v, want ReadNoop", got)
	}
	if got := p.OnRead(startedState(true), false, false); got != ReadNoop {
		t.Fatalf("locked row = %v, want ReadNoop", got)
	}
	if got := p.OnRead(ExamState{Locked: true}, false, false); got != ReadNoop {
		t.Fatalf("locked unstarted row = %v, want ReadNoop", got)
	}
	// reset is an admin-only flag.
	if got := p.OnRead(startedState(false), true, true); got != ReadNoop {
		t.Fatalf("user reset = %v, want ReadNoop", got)
	}
}

func TestAdminPolicyOnRead(t *testing.T) {
	p := AdminPolicy{}

	if got := p.OnRead(startedState(false), false, false); got != ReadNoop {
		t.Fatalf("running timer = %v, want ReadNoop", got)
	}
	if got := p.OnRead(startedState(false), true, false); got != ReadReopen {
		t.Fatalf("expired = %v, want ReadReopen", got)
	}
	if got := p.OnRead(startedState(true), false, false); got != ReadReopen {
		t.Fatalf("locked = %v, want ReadReopen", got)
	}
	if got := p.OnRead(startedState(false), false, true); got != ReadReopen {
		t.Fatalf("manual reset = %v, want ReadReopen", got)
	}
	if got := p.OnRead(ExamState{}, false, false); got != ReadStartTimer {
		t.Fatalf("unstarted row = %v, want ReadStartTimer", got)
	}
}

func TestUserPolicyOnSubmit(t *testing.T) {
	p := UserPolicy{}

	if _, err := p.OnSubmit(startedState(true), false); err != ErrLocked {
		t.Fatalf("locked err = %v, want ErrLocked", err)
	}
	if _, err := p.OnSubmit(ExamState{}, false); err != ErrNotStarted {
		t.Fatalf("unstarted err = %v, want ErrNotStarted", err)
	}
	if _, err := p.OnSubmit(startedState(false), true); err != ErrExpired {
		t.Fatalf("expired err = %v, want ErrExpired", err)
	}
	out, err := p.OnSubmit(startedState(false), false)
	if err != nil || out != SubmitLock {
		t.Fatalf("valid submit = %v, %v; want SubmitLock", out, err)
	}
}

func TestAdminPolicyOnSubmit(t *testing.T) {
	p := AdminPolicy{}

	if _, err := p.OnSubmit(ExamState{}, false); err != ErrNotStarted {
		t.Fatalf("unstarted err = %v, want ErrNotStarted", err)
	}
	// Expiry and lock never block an admin submission.
	out, err := p.OnSubmit(startedState(true), true)
	if err != nil || out != SubmitReset {
		t.Fatalf("admin submit = %v, %v; want SubmitReset", out, err)
	}
}

func TestPolicyFor(t *testing.T) {
	if _, ok := PolicyFor(RoleAdmin).(AdminPolicy); !ok {
		t.Fatal("ADMIN did not get AdminPolicy")
	}
	if _, ok := PolicyFor(RoleUser).(UserPolicy); !ok {
		t.Fatal("USER did not get UserPolicy")
	}
	if _, ok := PolicyFor("somethingelse").(UserPolicy); !ok {
		t.Fatal("unknown role must fall back to UserPolicy")
	}
}
