package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Sessions are stored as a compact binary record rather than JSON: a
// version byte, two unix-second timestamps, then length-prefixed
// strings. The version byte lets the layout evolve without flushing
// every live session.
const codecVersion = 1

var errCorruptRecord = errors.New("session record corrupt")

func encodeSession(sess Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(codecVersion)

	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], uint64(sess.CreatedAt.Unix()))
	buf.Write(ts[:])
	binary.BigEndian.PutUint64(ts[:], uint64(sess.LastSeenAt.Unix()))
	buf.Write(ts[:])

	for _, field := range []string{sess.ID, sess.UserID, sess.SourceIP, sess.UserAgent} {
		if len(field) > 0xFFFF {
			return nil, fmt.Errorf("session field too long: %d bytes", len(field))
		}
		var n [2]byte
		binary.BigEndian.PutUint16(n[:], uint16(len(field)))
		buf.Write(n[:])
		buf.WriteString(field)
	}
	return buf.Bytes(), nil
}

func decodeSession(data []byte) (Session, error) {
	if len(data) < 1+8+8 {
		return Session{}, errCorruptRecord
	}
	if data[0] != codecVersion {
		return Session{}, fmt.Errorf("%w: unknown version %d", errCorruptRecord, data[0])
	}

	created := int64(binary.BigEndian.Uint64(data[1:9]))
	lastSeen := int64(binary.BigEndian.Uint64(data[9:17]))
	rest := data[17:]

	fields := make([]string, 4)
	for i := range fields {
		if len(rest) < 2 {
			return Session{}, errCorruptRecord
		}
		n := int(binary.BigEndian.Uint16(rest[:2]))
		rest = rest[2:]
		if len(rest) < n {
			return Session{}, errCorruptRecord
		}
		fields[i] = string(rest[:n])
		rest = rest[n:]
	}
	if len(rest) != 0 {
		return Session{}, errCorruptRecord
	}

	return Session{
		ID:         fields[0],
		UserID:     fields[1],
		SourceIP:   fields[2],
		UserAgent:  fields[3],
		CreatedAt:  time.Unix(created, 0).UTC(),
		LastSeenAt: time.Unix(lastSeen, 0).UTC(),
	}, nil
}
