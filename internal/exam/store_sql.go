package exam

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// SQLStore implements Store on database/sql. Placeholders use the $n form,
// which both the pgx stdlib driver and modernc sqlite accept.
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, email, name, role FROM users WHERE email=$1`, email)
	var u User
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, err
	}
	return u, nil
}

// UpsertUser inserts or refreshes the identity row keyed by email. Name and
// role are rewritten on every sign-in; the allow-list, not the stored row,
// is the source of truth for role.
func (s *SQLStore) UpsertUser(ctx context.Context, u User) (User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name, role) VALUES ($1,$2,$3,$4)
		 ON CONFLICT (email) DO UPDATE SET name=excluded.name, role=excluded.role`,
		u.ID, u.Email, u.Name, u.Role)
	if err != nil {
		return User{}, err
	}
	return s.GetUserByEmail(ctx, u.Email)
}

func (s *SQLStore) GetState(ctx context.Context, userID, formID string) (ExamState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, form_id, attempt_token, started_at, locked, updated_at
		 FROM exam_states WHERE user_id=$1 AND form_id=$2`, userID, formID)
	return scanState(row)
}

func (s *SQLStore) getStateByID(ctx context.Context, q queryRower, id string) (ExamState, error) {
	row := q.QueryRowContext(ctx,
		`SELECT id, user_id, form_id, attempt_token, started_at, locked, updated_at
		 FROM exam_states WHERE id=$1`, id)
	return scanState(row)
}

func (s *SQLStore) CreateState(ctx context.Context, st ExamState) (ExamState, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO exam_states (id, user_id, form_id, attempt_token, started_at, locked, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)
		 ON CONFLICT (user_id, form_id) DO NOTHING`,
		st.ID, st.UserID, st.FormID, st.AttemptToken,
		nullMillis(st.StartedAt), st.Locked, st.UpdatedAt.UnixMilli())
	if err != nil {
		return ExamState{}, err
	}
	// Re-read: under a concurrent first poll the other request's row wins.
	return s.GetState(ctx, st.UserID, st.FormID)
}

func (s *SQLStore) StartTimer(ctx context.Context, stateID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_states SET started_at=$1, updated_at=$1
		 WHERE id=$2 AND locked=FALSE AND started_at IS NULL`,
		now.UnixMilli(), stateID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLStore) LockIfUnlocked(ctx context.Context, stateID string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_states SET locked=TRUE, updated_at=$1
		 WHERE id=$2 AND locked=FALSE`,
		now.UnixMilli(), stateID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *SQLStore) ResetState(ctx context.Context, stateID, token string, startedAt *time.Time, now time.Time) (ExamState, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE exam_states SET attempt_token=$1, started_at=$2, locked=FALSE, updated_at=$3
		 WHERE id=$4`,
		token, nullMillis(startedAt), now.UnixMilli(), stateID)
	if err != nil {
		return ExamState{}, err
	}
	return s.getStateByID(ctx, s.db, stateID)
}

func (s *SQLStore) ResetStateByUser(ctx context.Context, userID, formID, token string, now time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE exam_states SET attempt_token=$1, started_at=NULL, locked=FALSE, updated_at=$2
		 WHERE user_id=$3 AND form_id=$4`,
		token, now.UnixMilli(), userID, formID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	// Target never opened the form: create the row already reset.
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO exam_states (id, user_id, form_id, attempt_token, started_at, locked, updated_at)
		 VALUES ($1,$2,$3,$4,NULL,FALSE,$5)
		 ON CONFLICT (user_id, form_id) DO NOTHING`,
		newID(), userID, formID, token, now.UnixMilli())
	return err
}

func (s *SQLStore) ListStates(ctx context.Context, formID string) ([]StateWithUser, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT s.id, s.user_id, s.form_id, s.attempt_token, s.started_at, s.locked, s.updated_at,
		        u.id, u.email, u.name, u.role
		 FROM exam_states s JOIN users u ON u.id = s.user_id
		 WHERE s.form_id=$1
		 ORDER BY s.updated_at DESC`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StateWithUser
	for rows.Next() {
		var (
			sw      StateWithUser
			started sql.NullInt64
			updated int64
		)
		if err := rows.Scan(
			&sw.State.ID, &sw.State.UserID, &sw.State.FormID, &sw.State.AttemptToken,
			&started, &sw.State.Locked, &updated,
			&sw.User.ID, &sw.User.Email, &sw.User.Name, &sw.User.Role,
		); err != nil {
			return nil, err
		}
		sw.State.StartedAt = millisPtr(started)
		sw.State.UpdatedAt = time.UnixMilli(updated)
		out = append(out, sw)
	}
	return out, rows.Err()
}

func (s *SQLStore) SubmitLocking(ctx context.Context, stateID string, resp Response) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE exam_states SET locked=TRUE, updated_at=$1
		 WHERE id=$2 AND locked=FALSE`,
		resp.CreatedAt.UnixMilli(), stateID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// A concurrent submit already locked the row; write nothing.
		return false, nil
	}
	if err := insertResponse(ctx, tx, resp); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (s *SQLStore) SubmitResetting(ctx context.Context, stateID, newToken string, resp Response) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := insertResponse(ctx, tx, resp); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE exam_states SET attempt_token=$1, started_at=NULL, locked=FALSE, updated_at=$2
		 WHERE id=$3`,
		newToken, resp.CreatedAt.UnixMilli(), stateID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLStore) ListResponses(ctx context.Context, formID string, limit int) ([]Response, error) {
	return s.queryResponses(ctx,
		`SELECT id, form_id, user_id, name, created_at, total_score, max_score, percent, level, tip, answers_json
		 FROM responses WHERE form_id=$1
		 ORDER BY created_at DESC, id DESC LIMIT $2`, formID, limit)
}

func (s *SQLStore) ListAllResponses(ctx context.Context, limit int) ([]Response, error) {
	return s.queryResponses(ctx,
		`SELECT id, form_id, user_id, name, created_at, total_score, max_score, percent, level, tip, answers_json
		 FROM responses
		 ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
}

func (s *SQLStore) LatestResponsesByUser(ctx context.Context, formID string, userIDs []string) (map[string]Response, error) {
	all, err := s.queryResponses(ctx,
		`SELECT id, form_id, user_id, name, created_at, total_score, max_score, percent, level, tip, answers_json
		 FROM responses WHERE form_id=$1
		 ORDER BY created_at DESC, id DESC`, formID)
	if err != nil {
		return nil, err
	}
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	// Rows arrive newest first, so first-wins is latest-wins.
	latest := make(map[string]Response)
	for _, r := range all {
		if r.UserID == "" || !want[r.UserID] {
			continue
		}
		if _, ok := latest[r.UserID]; !ok {
			latest[r.UserID] = r
		}
	}
	return latest, nil
}

func (s *SQLStore) queryResponses(ctx context.Context, query string, args ...any) ([]Response, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Response
	for rows.Next() {
		var (
			r       Response
			userID  sql.NullString
			created int64
		)
		if err := rows.Scan(&r.ID, &r.FormID, &userID, &r.Name, &created,
			&r.TotalScore, &r.MaxScore, &r.Percent, &r.Level, &r.Tip, &r.Answers); err != nil {
			return nil, err
		}
		r.UserID = userID.String
		r.CreatedAt = time.UnixMilli(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func insertResponse(ctx context.Context, tx *sql.Tx, r Response) error {
	var userID sql.NullString
	if r.UserID != "" {
		userID = sql.NullString{String: r.UserID, Valid: true}
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO responses (id, form_id, user_id, name, created_at, total_score, max_score, percent, level, tip, answers_json)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		r.ID, r.FormID, userID, r.Name, r.CreatedAt.UnixMilli(),
		r.TotalScore, r.MaxScore, r.Percent, r.Level, r.Tip, r.Answers)
	return err
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanState(row *sql.Row) (ExamState, error) {
	var (
		st      ExamState
		started sql.NullInt64
		updated int64
	)
	if err := row.Scan(&st.ID, &st.UserID, &st.FormID, &st.AttemptToken,
		&started, &st.Locked, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ExamState{}, ErrNoState
		}
		return ExamState{}, err
	}
	st.StartedAt = millisPtr(started)
	st.UpdatedAt = time.UnixMilli(updated)
	return st, nil
}

func nullMillis(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func millisPtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64)
	return &t
}
