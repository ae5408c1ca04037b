package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const sessionFormatVersionCurrent = 1

var errFieldTooLong = errors.New("session field too long")

// Encode serializes s into the compact binary form stored in Redis.
//
// Layout (v1): version byte, then PendingUserID, UserID, Email, Name as
// uint16-length-prefixed strings, then PendingAt, LastActivity, CreatedAt as
// big-endian int64.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.Grow(64 + len(s.PendingUserID) + len(s.UserID) + len(s.Email) + len(s.Name))
	buf.WriteByte(sessionFormatVersionCurrent)

	for _, field := range []string{s.PendingUserID, s.UserID, s.Email, s.Name} {
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
	}

	for _, v := range []int64{s.PendingAt, s.LastActivity, s.CreatedAt} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses the binary form produced by Encode. SessionID is not part of
// the payload and is left empty.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, fmt.Errorf("unsupported session schema version %d", version)
	}

	s := &Session{}
	for _, dst := range []*string{&s.PendingUserID, &s.UserID, &s.Email, &s.Name} {
		v, err := readString(reader)
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	for _, dst := range []*int64{&s.PendingAt, &s.LastActivity, &s.CreatedAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, err
		}
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session payload")
	}

	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > math.MaxUint16 {
		return errFieldTooLong
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(v))); err != nil {
		return err
	}
	buf.WriteString(v)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	raw := make([]byte, n)
	if _, err := io.ReadFull(r, raw); err != nil {
		return "", err
	}
	return string(raw), nil
}
