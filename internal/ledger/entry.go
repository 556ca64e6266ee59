// Package ledger provides the append-only, hash-chained decision log. Every
// verdict and administrative event lands here; nothing is ever updated or
// deleted, and corrections reference the superseded entry by sequence.
package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// GenesisHash is the fixed previous-entry hash of sequence 0.
const GenesisHash = "genesis"

// Kind categorizes a ledger entry.
type Kind string

const (
	KindVerdict Kind = "VERDICT"
	KindReview  Kind = "REVIEW"
	KindAdmin   Kind = "ADMIN"
)

// Entry is one immutable, hash-chained record.
//
// EntryHash = sha256(seq || prevHash || payloadHash || timestamp), with the
// payload hash taken over the RFC 8785 canonical form of the payload so that
// key order and whitespace cannot perturb the chain.
type Entry struct {
	Seq         uint64          `json:"seq"`
	Kind        Kind            `json:"kind"`
	ProjectID   string          `json:"projectId,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	PayloadHash string          `json:"payloadHash"`
	PrevHash    string          `json:"prevHash"`
	EntryHash   string          `json:"entryHash"`
	Timestamp   time.Time       `json:"timestamp"`
	Signature   string          `json:"signature,omitempty"`
}

// PayloadHash canonicalizes and hashes a payload.
func PayloadHash(payload json.RawMessage) (string, error) {
	canonical, err := jcs.Transform(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ComputeEntryHash computes the chain hash for the given fields.
func ComputeEntryHash(seq uint64, prevHash, payloadHash string, ts time.Time) string {
	material := fmt.Sprintf("%d|%s|%s|%s", seq, prevHash, payloadHash, ts.UTC().Format(time.RFC3339Nano))
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}

// Signer optionally authenticates entries. The scheme is pluggable; key
// custody and rotation are an operator concern.
type Signer interface {
	Sign(entryHash string) (string, error)
}

// HMACSigner signs entry hashes with HMAC-SHA256.
type HMACSigner struct {
	key []byte
}

func NewHMACSigner(key []byte) *HMACSigner {
	return &HMACSigner{key: key}
}

func (s *HMACSigner) Sign(entryHash string) (string, error) {
	mac := hmac.New(sha256.New, s.key)
	if _, err := mac.Write([]byte(entryHash)); err != nil {
		return "", err
	}
	return hex.EncodeToString(mac.Sum(nil)), nil
}

var _ Signer = (*HMACSigner)(nil)
