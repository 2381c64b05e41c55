package auth

import (
	"strings"

	"github.com/mrich-apps/assessment-backend/internal/exam"
)

// Allowlist maps lowercase admin emails. Membership is re-checked on every
// sign-in, so removing an email demotes the account the next time it
// authenticates.
type Allowlist map[string]struct{}

func NewAllowlist(emails []string) Allowlist {
	al := make(Allowlist, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			al[e] = struct{}{}
		}
	}
	return al
}

// RoleFor derives the role for an email from list membership.
func (al Allowlist) RoleFor(email string) string {
	if _, ok := al[strings.ToLower(email)]; ok {
		return exam.RoleAdmin
	}
	return exam.RoleUser
}
