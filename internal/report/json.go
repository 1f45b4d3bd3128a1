package report

import (
	"io"
	"log"
	"sync"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"github.com/dreamware/sshchic/internal/keygen"
	"github.com/dreamware/sshchic/internal/search"
)

// MatchRecord is the JSON form of a match.
type MatchRecord struct {
	FoundAt     time.Time `json:"found_at"`
	PublicKey   string    `json:"public_key"`
	Fingerprint string    `json:"fingerprint"`
	Format      string    `json:"fingerprint_format"`
	PrivateKey  string    `json:"private_key,omitempty"`
	Examined    uint64    `json:"examined"`
	Worker      int       `json:"worker"`
}

// NewMatchRecord converts a match. The private key is included only when
// withPrivate is set.
func NewMatchRecord(m search.Match, enc keygen.Encoder, withPrivate bool) (MatchRecord, error) {
	rec := MatchRecord{
		FoundAt:     m.FoundAt.UTC(),
		PublicKey:   m.PublicKey,
		Fingerprint: m.Fingerprint,
		Format:      string(formatOrDefault(enc.Format)),
		Examined:    m.Examined,
		Worker:      m.Worker,
	}
	if withPrivate {
		priv, err := enc.PrivateKeyPEM(m.Candidate)
		if err != nil {
			return MatchRecord{}, err
		}
		rec.PrivateKey = string(priv)
	}
	return rec, nil
}

// JSON writes one JSON object per match, one per line. Progress samples
// are not written.
// Thread-safe: lines from concurrent workers never interleave.
type JSON struct {
	enc     *sonnet.Encoder
	encoder keygen.Encoder
	mu      sync.Mutex
}

// NewJSON creates a JSON lines reporter writing to out.
func NewJSON(out io.Writer, enc keygen.Encoder) *JSON {
	return &JSON{enc: sonnet.NewEncoder(out), encoder: enc}
}

// Match writes the record for m including its private key.
func (j *JSON) Match(m search.Match) {
	rec, err := NewMatchRecord(m, j.encoder, true)
	if err != nil {
		log.Printf("json report: %v", err)
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(rec); err != nil {
		log.Printf("json report: %v", err)
	}
}

// Progress is a no-op.
func (j *JSON) Progress(search.Sample) {}

func formatOrDefault(f keygen.FingerprintFormat) keygen.FingerprintFormat {
	if f == "" {
		return keygen.FormatBase64
	}
	return f
}
