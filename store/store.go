package store

import (
	"context"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/segmentio/ksuid"
)

const userColumns = `id, email, name, backup_email, backup_email_verified, account_locked, lock_until, created_at, updated_at`

// Store implements the credential store over a *sqlx.DB.
type Store struct {
	db *sqlx.DB
}

// New binds a Store to db. The schema must already be migrated (see Migrate).
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return wrap(s.db.PingContext(ctx))
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return 0, wrap(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a new user record.
func (s *Store) CreateUser(ctx context.Context, in NewUser, now time.Time) (*User, error) {
	if in.ID == "" || in.Email == "" {
		return nil, errors.New("store: user id and email are required")
	}
	email := NormalizeEmail(in.Email)
	ms := toMillis(now)

	_, err := s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO users (id, email, name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`),
		in.ID, email, in.Name, ms, ms,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, wrap(err)
	}

	return &User{
		ID:        in.ID,
		Email:     email,
		Name:      in.Name,
		CreatedAt: fromMillis(ms),
		UpdatedAt: fromMillis(ms),
	}, nil
}

// UserByEmail looks a user up by normalized email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, NormalizeEmail(email))
}

// UserByID looks a user up by id.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *Store) getUser(ctx context.Context, query string, arg string) (*User, error) {
	var row userRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, wrap(err)
	}
	return row.toUser(), nil
}

// SaveOTP stores otp with its expiry, replacing any previous code.
func (s *Store) SaveOTP(ctx context.Context, userID, otp string, expiresAt, now time.Time) error {
	if otp == "" {
		return errors.New("store: otp is required")
	}
	n, err := s.exec(ctx,
		`UPDATE users SET otp = ?, otp_expiry = ?, updated_at = ? WHERE id = ?`,
		otp, toMillis(expiresAt), toMillis(now), userID,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// VerifyOTP reports whether otp matches the stored, unexpired code. It does
// not consume the code.
func (s *Store) VerifyOTP(ctx context.Context, userID, otp string, now time.Time) (bool, error) {
	var row struct {
		OTP    sql.NullString `db:"otp"`
		Expiry sql.NullInt64  `db:"otp_expiry"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT otp, otp_expiry FROM users WHERE id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, wrap(err)
	}
	if !row.OTP.Valid || !row.Expiry.Valid || otp == "" {
		return false, nil
	}
	if toMillis(now) >= row.Expiry.Int64 {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(row.OTP.String), []byte(otp)) == 1, nil
}

// ConsumeOTP verifies otp and clears it in one conditional update. Of any
// number of concurrent callers presenting the same valid code, exactly one
// gets true.
func (s *Store) ConsumeOTP(ctx context.Context, userID, otp string, now time.Time) (bool, error) {
	ok, err := s.VerifyOTP(ctx, userID, otp, now)
	if err != nil || !ok {
		return false, err
	}
	ms := toMillis(now)
	n, err := s.exec(ctx,
		`UPDATE users SET otp = NULL, otp_expiry = NULL, updated_at = ?
		 WHERE id = ? AND otp = ? AND otp_expiry > ?`,
		ms, userID, otp, ms,
	)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClearOTP removes any stored OTP. It is idempotent.
func (s *Store) ClearOTP(ctx context.Context, userID string, now time.Time) error {
	_, err := s.exec(ctx,
		`UPDATE users SET otp = NULL, otp_expiry = NULL, updated_at = ? WHERE id = ?`,
		toMillis(now), userID,
	)
	return err
}

// SetBackupEmail stores an unverified backup address and its confirmation code.
func (s *Store) SetBackupEmail(ctx context.Context, userID, email, code string, now time.Time) error {
	email = NormalizeEmail(email)
	if email == "" || code == "" {
		return errors.New("store: backup email and code are required")
	}
	n, err := s.exec(ctx,
		`UPDATE users SET backup_email = ?, backup_email_verified = FALSE, backup_email_code = ?, updated_at = ?
		 WHERE id = ?`,
		email, code, toMillis(now), userID,
	)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// VerifyBackupEmail marks the backup address verified when code matches,
// clearing the code in the same statement.
func (s *Store) VerifyBackupEmail(ctx context.Context, userID, code string, now time.Time) (bool, error) {
	var stored sql.NullString
	err := s.db.GetContext(ctx, &stored, s.db.Rebind(`SELECT backup_email_code FROM users WHERE id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, wrap(err)
	}
	if !stored.Valid || code == "" {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(stored.String), []byte(code)) != 1 {
		return false, nil
	}

	n, err := s.exec(ctx,
		`UPDATE users SET backup_email_verified = TRUE, backup_email_code = NULL, updated_at = ?
		 WHERE id = ? AND backup_email_code = ?`,
		toMillis(now), userID, code,
	)
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// LockAccount locks the account for email until the given time.
func (s *Store) LockAccount(ctx context.Context, email string, until, now time.Time) error {
	_, err := s.exec(ctx,
		`UPDATE users SET account_locked = TRUE, lock_until = ?, updated_at = ? WHERE email = ?`,
		toMillis(until), toMillis(now), NormalizeEmail(email),
	)
	return err
}

// CheckLock reports whether email is locked at now. An expired lock is
// cleared on the spot and reported as not locked.
func (s *Store) CheckLock(ctx context.Context, email string, now time.Time) (LockState, error) {
	email = NormalizeEmail(email)

	var row struct {
		Locked bool          `db:"account_locked"`
		Until  sql.NullInt64 `db:"lock_until"`
	}
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT account_locked, lock_until FROM users WHERE email = ?`), email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return LockState{}, nil
		}
		return LockState{}, wrap(err)
	}
	if !row.Locked {
		return LockState{}, nil
	}

	ms := toMillis(now)
	if row.Until.Valid && row.Until.Int64 > ms {
		return LockState{Locked: true, Until: fromMillis(row.Until.Int64)}, nil
	}

	n, err := s.exec(ctx,
		`UPDATE users SET account_locked = FALSE, lock_until = NULL, updated_at = ?
		 WHERE email = ? AND account_locked = TRUE AND (lock_until IS NULL OR lock_until <= ?)`,
		ms, email, ms,
	)
	if err != nil {
		return LockState{}, err
	}
	return LockState{Cleared: n > 0}, nil
}

// RecordLoginAttempt appends one entry to the login log.
func (s *Store) RecordLoginAttempt(ctx context.Context, a LoginAttempt) (LoginAttempt, error) {
	if a.At.IsZero() {
		a.At = time.Now()
	}
	id, err := ksuid.NewRandomWithTime(a.At)
	if err != nil {
		return a, fmt.Errorf("login attempt id: %w", err)
	}
	a.ID = id.String()
	a.Email = NormalizeEmail(a.Email)
	if a.Reason == "" {
		if a.Success {
			a.Reason = ReasonOK
		} else {
			a.Reason = ReasonInvalidCredentials
		}
	}

	_, err = s.db.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO login_attempts (id, email, success, reason, created_at) VALUES (?, ?, ?, ?, ?)`),
		a.ID, a.Email, a.Success, a.Reason, toMillis(a.At),
	)
	if err != nil {
		return a, wrap(err)
	}
	return a, nil
}

// CountRecentFailures counts credential failures for email strictly after since.
func (s *Store) CountRecentFailures(ctx context.Context, email string, since time.Time) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, s.db.Rebind(
		`SELECT COUNT(*) FROM login_attempts
		 WHERE email = ? AND success = FALSE AND reason = ? AND created_at > ?`),
		NormalizeEmail(email), ReasonInvalidCredentials, toMillis(since),
	)
	if err != nil {
		return 0, wrap(err)
	}
	return n, nil
}

// RecentAttempts returns up to limit attempts for email, newest first.
func (s *Store) RecentAttempts(ctx context.Context, email string, limit int) ([]LoginAttempt, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []struct {
		ID        string `db:"id"`
		Email     string `db:"email"`
		Success   bool   `db:"success"`
		Reason    string `db:"reason"`
		CreatedAt int64  `db:"created_at"`
	}
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT id, email, success, reason, created_at FROM login_attempts
		 WHERE email = ? ORDER BY created_at DESC, id DESC LIMIT ?`),
		NormalizeEmail(email), limit,
	)
	if err != nil {
		return nil, wrap(err)
	}
	out := make([]LoginAttempt, 0, len(rows))
	for _, r := range rows {
		out = append(out, LoginAttempt{ID: r.ID, Email: r.Email, Success: r.Success, Reason: r.Reason, At: fromMillis(r.CreatedAt)})
	}
	return out, nil
}
