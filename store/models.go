package store

import (
	"database/sql"
	"time"

	"github.com/MrEthical07/otpgate/fieldcrypt"
)

// User is the credential-store view of an account. OTP values, backup codes,
// and sealed fields never leave the store through this type.
type User struct {
	ID                  string
	Email               string
	Name                string
	BackupEmail         string
	BackupEmailVerified bool
	Locked              bool
	LockUntil           time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// UsableBackupEmail returns the backup address only when it is verified.
func (u *User) UsableBackupEmail() (string, bool) {
	if u == nil || u.BackupEmail == "" || !u.BackupEmailVerified {
		return "", false
	}
	return u.BackupEmail, true
}

// NewUser carries the fields needed to create a user record.
type NewUser struct {
	ID    string
	Email string
	Name  string
}

// LoginAttempt is one append-only entry in the login audit trail.
type LoginAttempt struct {
	ID      string
	Email   string
	Success bool
	Reason  string
	At      time.Time
}

// Attempt reasons recorded in the login log.
const (
	ReasonOK                  = "ok"
	ReasonInvalidCredentials  = "invalid_credentials"
	ReasonAccountLocked       = "account_locked"
	ReasonEmailNotVerified    = "email_not_verified"
	ReasonProviderUnavailable = "provider_unavailable"
)

// LockState is the result of a lock check.
type LockState struct {
	Locked bool
	Until  time.Time
	// Cleared is true when an expired lock was removed by this check.
	Cleared bool
}

// SensitiveUpdate is a partial update of the encrypted profile fields. A nil
// pointer leaves the field untouched; a pointer to "" clears it.
type SensitiveUpdate struct {
	Phone   *string
	Address *string
}

// Empty reports whether the update changes nothing.
func (u SensitiveUpdate) Empty() bool {
	return u.Phone == nil && u.Address == nil
}

// SensitivePresence reports which encrypted fields hold data.
type SensitivePresence struct {
	HasPhone   bool
	HasAddress bool
}

// SensitivePlaintext is the result of the explicit decrypt path.
type SensitivePlaintext struct {
	Phone   string
	Address string
}

// Encrypter seals one field value.
type Encrypter interface {
	Encrypt(plaintext string) (*fieldcrypt.Sealed, error)
}

// Decrypter opens one sealed field value.
type Decrypter interface {
	Decrypt(s *fieldcrypt.Sealed) (string, error)
}

type userRow struct {
	ID                  string         `db:"id"`
	Email               string         `db:"email"`
	Name                string         `db:"name"`
	BackupEmail         sql.NullString `db:"backup_email"`
	BackupEmailVerified bool           `db:"backup_email_verified"`
	AccountLocked       bool           `db:"account_locked"`
	LockUntil           sql.NullInt64  `db:"lock_until"`
	CreatedAt           int64          `db:"created_at"`
	UpdatedAt           int64          `db:"updated_at"`
}

func (r userRow) toUser() *User {
	u := &User{
		ID:                  r.ID,
		Email:               r.Email,
		Name:                r.Name,
		BackupEmail:         r.BackupEmail.String,
		BackupEmailVerified: r.BackupEmailVerified,
		Locked:              r.AccountLocked,
		CreatedAt:           fromMillis(r.CreatedAt),
		UpdatedAt:           fromMillis(r.UpdatedAt),
	}
	if r.LockUntil.Valid {
		u.LockUntil = fromMillis(r.LockUntil.Int64)
	}
	return u
}

type sealedRow struct {
	PhoneCiphertext   sql.NullString `db:"phone_ciphertext"`
	PhoneIV           sql.NullString `db:"phone_iv"`
	PhoneTag          sql.NullString `db:"phone_tag"`
	AddressCiphertext sql.NullString `db:"address_ciphertext"`
	AddressIV         sql.NullString `db:"address_iv"`
	AddressTag        sql.NullString `db:"address_tag"`
}

func (r sealedRow) phone() *fieldcrypt.Sealed {
	return &fieldcrypt.Sealed{Ciphertext: r.PhoneCiphertext.String, IV: r.PhoneIV.String, Tag: r.PhoneTag.String}
}

func (r sealedRow) address() *fieldcrypt.Sealed {
	return &fieldcrypt.Sealed{Ciphertext: r.AddressCiphertext.String, IV: r.AddressIV.String, Tag: r.AddressTag.String}
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
