// Package sessionlog keeps a persistent record of completed secure sessions.
package sessionlog

import (
	"context"
	"crypto/rand"
	"database/sql"
	"math/big"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"secsock/internal/common/logger"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id               TEXT PRIMARY KEY,
	role             TEXT NOT NULL,
	local_addr       TEXT NOT NULL,
	remote_addr      TEXT NOT NULL,
	tls_version      TEXT NOT NULL,
	cipher_suite     TEXT NOT NULL,
	peer_fingerprint TEXT NOT NULL DEFAULT '',
	bytes_in         INTEGER NOT NULL DEFAULT 0,
	bytes_out        INTEGER NOT NULL DEFAULT 0,
	eof_kind         TEXT NOT NULL DEFAULT 'none',
	started_at       TIMESTAMP NOT NULL,
	ended_at         TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_started_at ON sessions (started_at);
`

// Session is one completed secure connection, client or server side.
type Session struct {
	ID              string
	Role            string
	LocalAddr       string
	RemoteAddr      string
	TLSVersion      string
	CipherSuite     string
	PeerFingerprint string
	BytesIn         int64
	BytesOut        int64
	EOFKind         string
	StartedAt       time.Time
	EndedAt         time.Time
}

type Store struct {
	lg *zap.SugaredLogger
	db *sql.DB
}

// Open opens (and if needed migrates) the session log at path.
func Open(ctx context.Context, path string) (*Store, error) {
	lg := logger.FromContext(ctx).Named("sessionlog")

	if path == "" {
		return nil, errors.New("session log path is required")
	}

	db, err := sql.Open("secsock_sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	lg.Debugf("Using session log `%s`", path)

	return &Store{lg: lg, db: db}, nil
}

// Record inserts a finished session. A missing ID is generated.
func (s *Store) Record(ctx context.Context, sess *Session) error {
	if sess.ID == "" {
		sess.ID = genID()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			id, role, local_addr, remote_addr, tls_version, cipher_suite,
			peer_fingerprint, bytes_in, bytes_out, eof_kind, started_at, ended_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Role, sess.LocalAddr, sess.RemoteAddr, sess.TLSVersion,
		sess.CipherSuite, sess.PeerFingerprint, sess.BytesIn, sess.BytesOut,
		sess.EOFKind, sess.StartedAt.UTC(), sess.EndedAt.UTC(),
	)
	if err != nil {
		return errors.Wrap(err, "insert session")
	}
	s.lg.Debugf("Recorded session %s (%s, %s <-> %s)", sess.ID, sess.Role, sess.LocalAddr, sess.RemoteAddr)
	return nil
}

// List returns up to limit sessions, newest first. limit <= 0 means all.
func (s *Store) List(ctx context.Context, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, local_addr, remote_addr, tls_version, cipher_suite,
			peer_fingerprint, bytes_in, bytes_out, eof_kind, started_at, ended_at
		FROM sessions ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query sessions")
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(
			&sess.ID, &sess.Role, &sess.LocalAddr, &sess.RemoteAddr,
			&sess.TLSVersion, &sess.CipherSuite, &sess.PeerFingerprint,
			&sess.BytesIn, &sess.BytesOut, &sess.EOFKind,
			&sess.StartedAt, &sess.EndedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan session")
		}
		sessions = append(sessions, &sess)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate sessions")
	}
	return sessions, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const safeCharset = "abcdefghjkmnpqrstuvwxyz1234567890"
const idLength = 8

func genID() string {
	b := make([]byte, idLength)
	for i := 0; i < idLength; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(safeCharset))))
		if err != nil {
			panic("failed to generate secure random ID")
		}
		b[i] = safeCharset[n.Int64()]
	}
	return string(b)
}
