package storage

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/dreamware/sshchic/internal/keygen"
	"github.com/dreamware/sshchic/internal/search"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS matches (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	found_at    TIMESTAMP NOT NULL,
	worker      INTEGER NOT NULL,
	examined    INTEGER NOT NULL,
	public_key  TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	private_key TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_matches_fingerprint ON matches(fingerprint);
`

// DefaultJournalQueue is how many matches may wait for the writer before
// new ones are dropped.
const DefaultJournalQueue = 1024

// Entry is one journaled match.
type Entry struct {
	FoundAt     time.Time
	PublicKey   string
	Fingerprint string
	PrivateKey  string
	ID          int64
	Examined    uint64
	Worker      int
}

// Journal records matches in a SQLite database. It implements
// search.Reporter; progress samples are ignored.
//
// Match only queues: one writer goroutine encodes and inserts, so workers
// never wait on the database. When the queue is full the match is dropped
// and counted. Record writes synchronously.
type Journal struct {
	db      *sql.DB
	insert  *sql.Stmt
	queue   chan journalItem
	write   func(search.Match) error
	encoder keygen.Encoder
	path    string
	wg      sync.WaitGroup
	mu      sync.Mutex // Guards closed and dropped against concurrent Match/Close
	dropped int
	closed  bool
}

// journalItem is either a match to write or a flush marker.
type journalItem struct {
	match   search.Match
	flushed chan struct{}
}

// OpenJournal opens or creates the journal database at path.
func OpenJournal(path string, enc keygen.Encoder) (*Journal, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open journal %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	insert, err := db.Prepare(`INSERT INTO matches
		(found_at, worker, examined, public_key, fingerprint, private_key)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare journal insert: %w", err)
	}
	j := &Journal{
		db:      db,
		insert:  insert,
		encoder: enc,
		path:    path,
		queue:   make(chan journalItem, DefaultJournalQueue),
	}
	j.write = j.Record
	j.wg.Add(1)
	go j.writer()
	return j, nil
}

func (j *Journal) writer() {
	defer j.wg.Done()
	for item := range j.queue {
		if item.flushed != nil {
			close(item.flushed)
			continue
		}
		if err := j.write(item.match); err != nil {
			log.Printf("journal %s: %v", j.path, err)
		}
	}
}

// Record stores one match.
func (j *Journal) Record(m search.Match) error {
	priv, err := j.encoder.PrivateKeyPEM(m.Candidate)
	if err != nil {
		return err
	}
	_, err = j.insert.Exec(m.FoundAt.UTC(), m.Worker, int64(m.Examined), m.PublicKey, m.Fingerprint, string(priv))
	if err != nil {
		return fmt.Errorf("journal insert: %w", err)
	}
	return nil
}

// Match queues m for the writer. Write failures are logged.
func (j *Journal) Match(m search.Match) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return
	}
	select {
	case j.queue <- journalItem{match: m}:
	default:
		j.dropped++
	}
}

// Flush waits until every match queued before the call has been written.
func (j *Journal) Flush() {
	done := make(chan struct{})
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	// Send under the lock so Close cannot close the queue mid-send.
	j.queue <- journalItem{flushed: done}
	j.mu.Unlock()
	<-done
}

// Dropped returns how many matches were discarded because the queue was full.
func (j *Journal) Dropped() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dropped
}

// Progress is a no-op.
func (j *Journal) Progress(search.Sample) {}

// Count returns the number of journaled matches.
func (j *Journal) Count() (int, error) {
	var n int
	if err := j.db.QueryRow(`SELECT COUNT(*) FROM matches`).Scan(&n); err != nil {
		return 0, fmt.Errorf("journal count: %w", err)
	}
	return n, nil
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(limit int) ([]Entry, error) {
	rows, err := j.db.Query(`SELECT id, found_at, worker, examined, public_key, fingerprint, private_key
		FROM matches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var examined int64
		if err := rows.Scan(&e.ID, &e.FoundAt, &e.Worker, &examined, &e.PublicKey, &e.Fingerprint, &e.PrivateKey); err != nil {
			return nil, fmt.Errorf("journal scan: %w", err)
		}
		e.Examined = uint64(examined)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close stops accepting matches, waits for queued ones to be written and
// releases the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.queue)
	j.mu.Unlock()

	j.wg.Wait()
	if n := j.Dropped(); n > 0 {
		log.Printf("journal %s: dropped %d matches", j.path, n)
	}
	j.insert.Close()
	return j.db.Close()
}
