// Package keygen produces ed25519 key candidates and renders them in the
// textual forms a vanity search matches against and persists.
//
// # Overview
//
// Each call to Generate draws a fresh seed from a cryptographically secure
// reader and derives the key pair from it. Candidates are never shared between
// goroutines; the worker that generated one owns it until it is discarded or
// handed to a reporter.
//
// # Encodings
//
// Encoder renders three views of a candidate:
//
//	AuthorizedKey  ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAI...   (match target)
//	PublicKeyLine  ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAI... comment   (.pub file)
//	Fingerprint    SHA256 of the SSH wire encoding, rendered as
//	               base64 (unpadded, as ssh-keygen -l prints it), hex, base58,
//	               or raw (padded base64 of the bare key digest)
//
// The private key is rendered as an OpenSSH "OPENSSH PRIVATE KEY" PEM block
// by PrivateKeyPEM.
//
// # Usage Example
//
//	enc := keygen.Encoder{Comment: "laptop", Format: keygen.FormatBase64}
//	c, err := keygen.Generate(rand.Reader)
//	if err != nil {
//	    return err
//	}
//	line, _ := enc.AuthorizedKey(c)
//	fp, _ := enc.Fingerprint(c)
package keygen
