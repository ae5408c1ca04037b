package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/otpgate/fieldcrypt"
)

// UpdateSensitive seals the supplied fields with enc and stores ciphertext,
// IV, and tag. Only the fields present in upd are written.
func (s *Store) UpdateSensitive(ctx context.Context, userID string, enc Encrypter, upd SensitiveUpdate, now time.Time) error {
	if upd.Empty() {
		return nil
	}
	if enc == nil {
		return errors.New("store: encrypter required")
	}

	sets := make([]string, 0, 7)
	args := make([]any, 0, 8)

	appendField := func(prefix string, value *string) error {
		if value == nil {
			return nil
		}
		sealed, err := enc.Encrypt(*value)
		if err != nil {
			return fmt.Errorf("seal %s: %w", prefix, err)
		}
		if sealed == nil {
			sealed = &fieldcrypt.Sealed{}
		}
		sets = append(sets, prefix+"_ciphertext = ?", prefix+"_iv = ?", prefix+"_tag = ?")
		args = append(args, nullable(sealed.Ciphertext), nullable(sealed.IV), nullable(sealed.Tag))
		return nil
	}
	if err := appendField("phone", upd.Phone); err != nil {
		return err
	}
	if err := appendField("address", upd.Address); err != nil {
		return err
	}

	sets = append(sets, "updated_at = ?")
	args = append(args, toMillis(now), userID)

	n, err := s.exec(ctx, `UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SensitivePresence reports which sealed fields hold data without opening them.
func (s *Store) SensitivePresence(ctx context.Context, userID string) (SensitivePresence, error) {
	row, err := s.sealed(ctx, userID)
	if err != nil {
		return SensitivePresence{}, err
	}
	return SensitivePresence{
		HasPhone:   !row.phone().Empty(),
		HasAddress: !row.address().Empty(),
	}, nil
}

// DecryptSensitive is the explicit read path that opens sealed fields with dec.
func (s *Store) DecryptSensitive(ctx context.Context, userID string, dec Decrypter) (SensitivePlaintext, error) {
	if dec == nil {
		return SensitivePlaintext{}, errors.New("store: decrypter required")
	}
	row, err := s.sealed(ctx, userID)
	if err != nil {
		return SensitivePlaintext{}, err
	}

	phone, err := dec.Decrypt(row.phone())
	if err != nil {
		return SensitivePlaintext{}, err
	}
	address, err := dec.Decrypt(row.address())
	if err != nil {
		return SensitivePlaintext{}, err
	}
	return SensitivePlaintext{Phone: phone, Address: address}, nil
}

func (s *Store) sealed(ctx context.Context, userID string) (sealedRow, error) {
	var row sealedRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(
		`SELECT phone_ciphertext, phone_iv, phone_tag, address_ciphertext, address_iv, address_tag
		 FROM users WHERE id = ?`), userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sealedRow{}, ErrNotFound
		}
		return sealedRow{}, wrap(err)
	}
	return row, nil
}
