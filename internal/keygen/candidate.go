package keygen

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"io"
	"strings"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/ssh"
	"golang.org/x/exp/slices"
)

// DefaultComment is attached to persisted keys when no comment is configured.
const DefaultComment = "Generated by sshchic"

// FingerprintFormat selects how the SHA256 fingerprint digest is rendered.
type FingerprintFormat string

const (
	// FormatBase64 renders the digest as unpadded standard base64, the form
	// ssh-keygen prints after "SHA256:".
	FormatBase64 FingerprintFormat = "base64"
	// FormatHex renders the digest as lowercase hex.
	FormatHex FingerprintFormat = "hex"
	// FormatBase58 renders the digest with the Bitcoin base58 alphabet.
	FormatBase58 FingerprintFormat = "base58"
	// FormatRaw hashes the bare 32 public key bytes instead of the SSH wire
	// encoding and renders the digest as padded standard base64, so a
	// pattern may anchor on the trailing "=".
	FormatRaw FingerprintFormat = "raw"
)

// Formats lists every supported fingerprint format.
var Formats = []FingerprintFormat{FormatBase64, FormatHex, FormatBase58, FormatRaw}

// ParseFingerprintFormat converts a user supplied name into a FingerprintFormat.
// Matching is case-insensitive; the empty string selects FormatBase64.
func ParseFingerprintFormat(name string) (FingerprintFormat, error) {
	if name == "" {
		return FormatBase64, nil
	}
	f := FingerprintFormat(strings.ToLower(name))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("unknown fingerprint format %q (want one of %v)", name, Formats)
	}
	return f, nil
}

// Candidate is one ed25519 key pair under test.
type Candidate struct {
	Private ed25519.PrivateKey
	Public  ed25519.PublicKey
}

// Generate creates a new candidate from 32 bytes of entropy read from r.
// A nil reader falls back to crypto/rand.
func Generate(r io.Reader) (*Candidate, error) {
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &Candidate{Private: priv, Public: pub}, nil
}

// FromSeed derives the candidate for a fixed 32-byte seed.
// Used to rebuild known keys, mostly in tests.
func FromSeed(seed []byte) (*Candidate, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &Candidate{Private: priv, Public: priv.Public().(ed25519.PublicKey)}, nil
}

// Encoder renders candidates. The zero value uses FormatBase64 and DefaultComment.
type Encoder struct {
	Comment string            // Comment written to persisted keys
	Format  FingerprintFormat // Fingerprint rendering
}

func (e Encoder) comment() string {
	if e.Comment == "" {
		return DefaultComment
	}
	return e.Comment
}

// AuthorizedKey returns "ssh-ed25519 <base64>" with no comment and no
// trailing newline. This is the public-key match target.
func (e Encoder) AuthorizedKey(c *Candidate) (string, error) {
	pub, err := ssh.NewPublicKey(c.Public)
	if err != nil {
		return "", fmt.Errorf("encode public key: %w", err)
	}
	return strings.TrimSuffix(string(ssh.MarshalAuthorizedKey(pub)), "\n"), nil
}

// PublicKeyLine returns the authorized_keys line including the comment,
// terminated by a newline.
func (e Encoder) PublicKeyLine(c *Candidate) (string, error) {
	key, err := e.AuthorizedKey(c)
	if err != nil {
		return "", err
	}
	return key + " " + e.comment() + "\n", nil
}

// Fingerprint returns the SHA256 digest of the SSH wire encoding rendered in
// the configured format, without any "SHA256:" prefix. FormatRaw digests the
// bare public key instead.
func (e Encoder) Fingerprint(c *Candidate) (string, error) {
	if e.Format == FormatRaw {
		sum := sha256.Sum256(c.Public)
		return base64.StdEncoding.EncodeToString(sum[:]), nil
	}
	pub, err := ssh.NewPublicKey(c.Public)
	if err != nil {
		return "", fmt.Errorf("encode public key: %w", err)
	}
	switch e.Format {
	case "", FormatBase64:
		return strings.TrimPrefix(ssh.FingerprintSHA256(pub), "SHA256:"), nil
	case FormatHex:
		sum := sha256.Sum256(pub.Marshal())
		return hex.EncodeToString(sum[:]), nil
	case FormatBase58:
		sum := sha256.Sum256(pub.Marshal())
		return base58.Encode(sum[:]), nil
	default:
		return "", fmt.Errorf("unknown fingerprint format %q", e.Format)
	}
}

// PrivateKeyPEM returns the private key in OpenSSH PEM form.
func (e Encoder) PrivateKeyPEM(c *Candidate) ([]byte, error) {
	block, err := ssh.MarshalPrivateKey(c.Private, e.comment())
	if err != nil {
		return nil, fmt.Errorf("encode private key: %w", err)
	}
	return pem.EncodeToMemory(block), nil
}
