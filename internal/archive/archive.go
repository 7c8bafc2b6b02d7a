// Package archive persists registered accounts, auth tokens and retired
// advice sessions in sqlite. Live chat state never touches the database;
// memory stays the source of truth and the archive is written behind it.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"tanktalk/pkg/types"
)

// User is a registered account row. Accounts exist for the REST surface
// only; the socket path keeps accepting self-asserted identity.
type User struct {
	ID           string      `json:"id"`
	Username     string      `json:"username"`
	PasswordHash []byte      `json:"-"`
	Salt         []byte      `json:"-"`
	Level        types.Level `json:"level"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Store wraps the sqlite database. All writes funnel through a single
// goroutine; sqlite handles concurrent reads but contended writes poorly.
type Store struct {
	db      *sql.DB
	writeCh chan writeOp
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
	mu      sync.Mutex
}

type writeOp struct {
	fn     func(*sql.DB) error
	result chan error
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            TEXT PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	password_hash BLOB NOT NULL,
	salt          BLOB NOT NULL,
	level         TEXT NOT NULL,
	created_at    DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tokens (
	hash       TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL REFERENCES users(id),
	expires_at DATETIME NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS advice_sessions (
	id            TEXT PRIMARY KEY,
	topic         TEXT,
	participants  TEXT NOT NULL,
	transcript    TEXT NOT NULL,
	message_count INTEGER NOT NULL,
	created_at    DATETIME NOT NULL,
	ended_at      DATETIME NOT NULL,
	end_reason    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS advice_feedback (
	session_id   TEXT NOT NULL,
	user_id      TEXT NOT NULL,
	rating       INTEGER NOT NULL,
	comment      TEXT,
	submitted_at DATETIME NOT NULL,
	PRIMARY KEY (session_id, user_id)
);
`

// Open opens (creating if needed) the archive database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open archive database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply archive schema: %w", err)
	}

	s := &Store{
		db:      db,
		writeCh: make(chan writeOp, 100),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.writeLoop()
	return s, nil
}

func (s *Store) writeLoop() {
	defer s.wg.Done()
	for {
		select {
		case op := <-s.writeCh:
			err := op.fn(s.db)
			if err != nil {
				slog.Warn("archive write failed, retrying", "error", err)
				time.Sleep(time.Second)
				err = op.fn(s.db)
			}
			op.result <- err
		case <-s.done:
			return
		}
	}
}

func (s *Store) write(fn func(*sql.DB) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("archive store is closed")
	}
	s.mu.Unlock()

	result := make(chan error, 1)
	select {
	case s.writeCh <- writeOp{fn: fn, result: result}:
		return <-result
	case <-s.done:
		return fmt.Errorf("archive store is shutting down")
	case <-time.After(30 * time.Second):
		return fmt.Errorf("archive write timeout")
	}
}

// CreateUser inserts a new account.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	return s.write(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO users (id, username, password_hash, salt, level, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			u.ID, u.Username, u.PasswordHash, u.Salt, string(u.Level), u.CreatedAt)
		return err
	})
}

// GetUserByUsername looks an account up by username. Returns nil, nil when
// no account exists.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, salt, level, created_at FROM users WHERE username = ?`,
		username)
	return scanUser(row)
}

// SaveToken stores the SHA-256 hash of an issued bearer token.
func (s *Store) SaveToken(ctx context.Context, userID, tokenHash string, expiresAt time.Time) error {
	return s.write(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT INTO tokens (hash, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
			tokenHash, userID, expiresAt, time.Now())
		return err
	})
}

// GetUserByTokenHash resolves a token hash to its account, ignoring expired
// tokens. Returns nil, nil when the token is unknown or expired.
func (s *Store) GetUserByTokenHash(ctx context.Context, tokenHash string) (*User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.password_hash, u.salt, u.level, u.created_at
		 FROM tokens t JOIN users u ON u.id = t.user_id
		 WHERE t.hash = ? AND t.expires_at > ?`,
		tokenHash, time.Now())
	return scanUser(row)
}

func scanUser(row *sql.Row) (*User, error) {
	var u User
	var level string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Salt, &level, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Level = types.Level(level)
	return &u, nil
}

// ArchiveSession writes an ended session and its feedback rows. The
// transcript and participant records are stored as JSON blobs; the archive
// is an audit trail, not a query surface.
func (s *Store) ArchiveSession(ctx context.Context, sess *types.AdviceSession) error {
	participants, err := json.Marshal([]types.Participant{sess.A, sess.B})
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	transcript, err := json.Marshal(sess.Messages)
	if err != nil {
		return fmt.Errorf("marshal transcript: %w", err)
	}

	return s.write(func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO advice_sessions
			 (id, topic, participants, transcript, message_count, created_at, ended_at, end_reason)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sess.ID, sess.Topic, string(participants), string(transcript),
			len(sess.Messages), sess.CreatedAt, sess.EndedAt, sess.EndReason); err != nil {
			return err
		}
		for _, fb := range sess.Feedback {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO advice_feedback (session_id, user_id, rating, comment, submitted_at)
				 VALUES (?, ?, ?, ?, ?)`,
				sess.ID, fb.UserID, fb.Rating, fb.Comment, fb.SubmittedAt); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}

// SaveFeedback upserts a single feedback row, used when feedback arrives
// for a session that was already archived or is still live.
func (s *Store) SaveFeedback(ctx context.Context, sessionID string, fb *types.Feedback) error {
	return s.write(func(db *sql.DB) error {
		_, err := db.ExecContext(ctx,
			`INSERT OR REPLACE INTO advice_feedback (session_id, user_id, rating, comment, submitted_at)
			 VALUES (?, ?, ?, ?, ?)`,
			sessionID, fb.UserID, fb.Rating, fb.Comment, fb.SubmittedAt)
		return err
	})
}

// ArchivedSessionCount returns how many sessions have been archived.
func (s *Store) ArchivedSessionCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM advice_sessions`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count archived sessions: %w", err)
	}
	return n, nil
}

// HealthCheck verifies database connectivity.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close drains the write loop and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)
	s.wg.Wait()
	return s.db.Close()
}
