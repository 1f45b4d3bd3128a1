// Package report renders search results for people and programs: a console
// view with a live progress line, JSON lines, webhook notifications, and a
// fan-out that combines them.
package report

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/dreamware/sshchic/internal/keygen"
	"github.com/dreamware/sshchic/internal/search"
)

// clearLine erases the current terminal line and returns the cursor.
const clearLine = "\x1b[2K\r"

// Console prints matches with their key material and, when attached to a
// terminal, a single self-refreshing progress line.
// Thread-safe: all writes are serialized.
type Console struct {
	out         io.Writer
	encoder     keygen.Encoder
	banner      *color.Color
	mu          sync.Mutex
	interactive bool // Progress line enabled
	dirty       bool // A progress line is on screen
	showPrivate bool
}

// NewConsole creates a console reporter writing to out. The progress line
// is only shown when out is a terminal.
func NewConsole(out io.Writer, enc keygen.Encoder) *Console {
	interactive := false
	if f, ok := out.(*os.File); ok {
		interactive = term.IsTerminal(int(f.Fd()))
	}
	return &Console{
		out:         out,
		encoder:     enc,
		banner:      color.New(color.FgGreen, color.Bold),
		interactive: interactive,
		showPrivate: true,
	}
}

// SetInteractive forces the progress line on or off.
func (c *Console) SetInteractive(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interactive = on
}

// SetShowPrivate controls whether matches print the private key.
func (c *Console) SetShowPrivate(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.showPrivate = on
}

// Match prints the banner, private key, public key and fingerprint.
func (c *Console) Match(m search.Match) {
	c.mu.Lock()
	showPrivate := c.showPrivate
	c.mu.Unlock()

	var priv []byte
	if showPrivate {
		var err error
		priv, err = c.encoder.PrivateKeyPEM(m.Candidate)
		if err != nil {
			priv = []byte(fmt.Sprintf("<unable to encode private key: %v>\n", err))
		}
	}
	pubLine, err := c.encoder.PublicKeyLine(m.Candidate)
	if err != nil {
		pubLine = m.PublicKey + "\n"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirty {
		fmt.Fprint(c.out, clearLine)
		c.dirty = false
	}
	c.banner.Fprintln(c.out, "Match found!")
	fmt.Fprintf(c.out, "Total keys processed: %d\n", m.Examined)
	if showPrivate {
		fmt.Fprintf(c.out, "\nPrivate key:\n%s", priv)
	}
	fmt.Fprintf(c.out, "Public key:\n%s", pubLine)
	fmt.Fprintf(c.out, "Fingerprint: %s\n", FingerprintLabel(c.encoder.Format, m.Fingerprint))
}

// Progress redraws the progress line.
func (c *Console) Progress(s search.Sample) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.interactive {
		return
	}
	fmt.Fprint(c.out, clearLine+ProgressLine(s))
	c.dirty = true
}

// Finish ends the progress line so following output starts on a fresh line.
func (c *Console) Finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dirty {
		fmt.Fprintln(c.out)
		c.dirty = false
	}
}

// Saved confirms the files written for a single-shot match.
func (c *Console) Saved(files []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, f := range files {
		fmt.Fprintf(c.out, "Saved %s\n", f)
	}
}

// ProgressLine formats a sample as "Keys processed: 1.23 M | Rate: 45.67 kKeys/s".
func ProgressLine(s search.Sample) string {
	return fmt.Sprintf("Keys processed: %s | Rate: %.2f kKeys/s", CompactCount(s.Examined), s.Smoothed/1000)
}

// CompactCount renders n with an SI suffix, e.g. 1234567 -> "1.23 M".
func CompactCount(n uint64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	return humanize.SIWithDigits(float64(n), 2, "")
}

// FingerprintLabel prefixes a fingerprint with its digest and rendering,
// e.g. "SHA256:abc..." for base64 as ssh-keygen prints it. The raw form
// is unprefixed.
func FingerprintLabel(format keygen.FingerprintFormat, fp string) string {
	switch format {
	case "", keygen.FormatBase64:
		return "SHA256:" + fp
	case keygen.FormatRaw:
		return fp
	default:
		return "SHA256(" + string(format) + "):" + fp
	}
}
