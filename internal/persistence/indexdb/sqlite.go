package indexdb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"yogiworld.io/internal/sim/world"
)

// SQLiteIndex is a queryable read model over journal entries. It is fed
// asynchronously; the journal files stay the source of truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	// mu guards closed and every send on ch, so Close cannot close the
	// channel under a sender.
	mu     sync.RWMutex
	closed bool

	dropped atomic.Uint64
	written atomic.Uint64
}

type req struct {
	entry world.JournalEntry
	// barrier, when set, is closed after everything queued before it has
	// been committed.
	barrier chan struct{}
}

// Earner is one row of the reward leaderboard.
type Earner struct {
	ParticipantID string `json:"participant_id"`
	Name          string `json:"name"`
	Points        int    `json:"points"`
	Rewards       int    `json:"rewards"`
}

type Stats struct {
	QueueDepth    int    `json:"queue_depth"`
	QueueCapacity int    `json:"queue_capacity"`
	DroppedTotal  uint64 `json:"dropped_total"`
	WrittenTotal  uint64 `json:"written_total"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 16384),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the append-only workload; this is a secondary index so
	// NORMAL sync is enough.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS sessions (
			participant_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			joined_at TEXT NOT NULL,
			left_at TEXT,
			points INTEGER NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS rewards (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			at TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			zone TEXT,
			delta INTEGER NOT NULL,
			total INTEGER NOT NULL,
			reason TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_rewards_participant ON rewards(participant_id, seq);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteEntry enqueues an entry without blocking. Entries are dropped when the
// indexer falls behind.
func (s *SQLiteIndex) WriteEntry(e world.JournalEntry) error {
	if s == nil {
		return nil
	}
	switch e.Kind {
	case world.EntryJoin, world.EntryLeave, world.EntryReward:
	default:
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil
	}
	select {
	case s.ch <- req{entry: e}:
	default:
		s.dropped.Add(1)
	}
	return nil
}

// Sync waits until every entry queued before the call has been committed.
func (s *SQLiteIndex) Sync(ctx context.Context) error {
	if s == nil {
		return nil
	}
	done := make(chan struct{})
	if err := s.enqueueBarrier(ctx, done); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) enqueueBarrier(ctx context.Context, done chan struct{}) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		close(done)
		return nil
	}
	select {
	case s.ch <- req{barrier: done}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:    len(s.ch),
		QueueCapacity: cap(s.ch),
		DroppedTotal:  s.dropped.Load(),
		WrittenTotal:  s.written.Load(),
	}
}

// TopEarners returns participants ordered by their latest reward total.
func (s *SQLiteIndex) TopEarners(ctx context.Context, limit int) ([]Earner, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.participant_id, r.name, r.total, c.n
		FROM rewards r
		JOIN (
			SELECT participant_id, MAX(seq) AS last_seq, COUNT(*) AS n
			FROM rewards GROUP BY participant_id
		) c ON c.participant_id = r.participant_id AND c.last_seq = r.seq
		ORDER BY r.total DESC, r.participant_id ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("top earners: %w", err)
	}
	defer rows.Close()
	var out []Earner
	for rows.Next() {
		var e Earner
		if err := rows.Scan(&e.ParticipantID, &e.Name, &e.Points, &e.Rewards); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertSession, _ := s.db.Prepare(`INSERT INTO sessions(participant_id,name,joined_at) VALUES(?,?,?)
		ON CONFLICT(participant_id) DO UPDATE SET name=excluded.name, joined_at=excluded.joined_at, left_at=NULL`)
	closeSession, _ := s.db.Prepare(`UPDATE sessions SET left_at=?, points=?, name=? WHERE participant_id=?`)
	insertReward, _ := s.db.Prepare(`INSERT INTO rewards(at,participant_id,name,zone,delta,total,reason) VALUES(?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertSession, closeSession, insertReward} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) bool {
		if st == nil {
			return false
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return false
		}
		opCount++
		s.written.Add(1)
		return true
	}

	for r := range s.ch {
		if r.barrier != nil {
			commit()
			close(r.barrier)
			continue
		}
		begin()
		if tx == nil {
			continue
		}
		e := r.entry
		at := e.Time.UTC().Format(time.RFC3339Nano)
		switch e.Kind {
		case world.EntryJoin:
			exec(insertSession, e.ParticipantID, e.Name, at)
		case world.EntryLeave:
			exec(closeSession, at, e.Total, e.Name, e.ParticipantID)
		case world.EntryReward:
			var zone any
			if e.Zone != "" {
				zone = e.Zone
			}
			exec(insertReward, at, e.ParticipantID, e.Name, zone, e.Delta, e.Total, e.Reason)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
