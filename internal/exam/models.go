package exam

import "time"

// FormID is the single questionnaire this deployment serves.
const FormID = "mrich-assessment-v1"

// Duration is the server-enforced time limit of one attempt.
const Duration = 30 * time.Minute

const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"` // lowercase, unique identity key
	Name  string `json:"name"`
	Role  string `json:"role"` // USER | ADMIN
}

// ExamState is the durable attempt row, one per (user, form).
// StartedAt == nil means the timer is not running; a fresh attempt after an
// unlock is represented this way, never by row deletion.
type ExamState struct {
	ID           string     `json:"id"`
	UserID       string     `json:"user_id"`
	FormID       string     `json:"form_id"`
	AttemptToken string     `json:"attempt_token"`
	StartedAt    *time.Time `json:"started_at"`
	Locked       bool       `json:"locked"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ExpiresAt derives the deadline; nil while the timer is not running.
func (s ExamState) ExpiresAt() *time.Time {
	if s.StartedAt == nil {
		return nil
	}
	t := s.StartedAt.Add(Duration)
	return &t
}

// Expired reports whether now is past the deadline. A row without a running
// timer is never expired.
func (s ExamState) Expired(now time.Time) bool {
	exp := s.ExpiresAt()
	return exp != nil && now.After(*exp)
}

// StateView is what GET /api/exam/state returns to the browser, which
// renders its countdown from ExpiresAt.
type StateView struct {
	Role         string     `json:"role"`
	Locked       bool       `json:"locked"`
	AttemptToken string     `json:"attemptToken"`
	StartedAt    *time.Time `json:"startedAt"`
	ExpiresAt    *time.Time `json:"expiresAt"`
	Expired      bool       `json:"expired"`
}

// Response is one immutable scored submission.
type Response struct {
	ID         string    `json:"id"`
	FormID     string    `json:"formId"`
	UserID     string    `json:"userId,omitempty"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	TotalScore float64   `json:"totalScore"`
	MaxScore   float64   `json:"maxScore"`
	Percent    float64   `json:"percent"`
	Level      string    `json:"level"`
	Tip        string    `json:"tip"`
	Answers    string    `json:"-"` // raw answers_json payload
}

// AnswersPayload is what gets marshaled into responses.answers_json: the raw
// answers plus the attempt round that produced them.
type AnswersPayload struct {
	Meta    AnswersMeta `json:"_meta"`
	Answers []string    `json:"answers"`
}

type AnswersMeta struct {
	AttemptToken string    `json:"attemptToken"`
	StartedAt    time.Time `json:"startedAt"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Attempt classification used by the admin dashboard.
const (
	StatusInProgress = "IN_PROGRESS"
	StatusSubmitted  = "SUBMITTED"
	StatusTimedOut   = "TIMED_OUT"
	StatusNotStarted = "NOT_STARTED"
)

// StateItem is one row of the per-user admin aggregation: attempt state
// joined with its owner and the owner's most recent response.
type StateItem struct {
	User   User        `json:"user"`
	State  StateDetail `json:"examState"`
	Latest *Response   `json:"latestResponse"`
	Status string      `json:"status"`
}

type StateDetail struct {
	ID        string     `json:"id"`
	StartedAt *time.Time `json:"startedAt"`
	ExpiresAt *time.Time `json:"expiresAt"`
	Expired   bool       `json:"expired"`
	Locked    bool       `json:"locked"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
