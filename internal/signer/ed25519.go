package signer

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Ed25519Signer is the upgrade path from the mock scheme: real asymmetric
// signatures over the canonical payload, and verification that actually
// recomputes and checks. Selected via SIGNER_MODE=ed25519.
type Ed25519Signer struct {
	keyID    string
	priv     ed25519.PrivateKey
	pub      ed25519.PublicKey
	validity time.Duration
	provider Provider
}

// NewEd25519 derives a keypair from a seed string. The seed is stretched
// through SHA-256 so any non-empty configuration value works.
func NewEd25519(keyID, seed string, opts ...Option) (*Ed25519Signer, error) {
	if seed == "" {
		return nil, fmt.Errorf("ed25519 signer requires a key seed")
	}
	digest := sha256.Sum256([]byte(seed))
	priv := ed25519.NewKeyFromSeed(digest[:])

	base := NewMock(keyID, opts...)
	return &Ed25519Signer{
		keyID:    base.keyID,
		priv:     priv,
		pub:      priv.Public().(ed25519.PublicKey),
		validity: base.validity,
		provider: base.provider,
	}, nil
}

func (s *Ed25519Signer) Sign(principal Principal, purpose PurposeRef, status string, now time.Time) (Artifact, error) {
	principal.IDType = inferIDType(principal)

	artifact := Artifact{
		SchemaVersion: SchemaVersion,
		ConsentID:     uuid.New().String(),
		Principal:     principal,
		Purpose:       purpose,
		Consent: Consent{
			Status:     status,
			Timestamp:  now,
			ValidUntil: now.Add(s.validity),
		},
		Frequency:    "ongoing",
		DataProvider: s.provider,
	}

	msg, err := canonicalPayload(artifact)
	if err != nil {
		return Artifact{}, fmt.Errorf("serialize artifact payload: %w", err)
	}
	sig := ed25519.Sign(s.priv, msg)
	artifact.Signature = fmt.Sprintf("ed25519.%s_%s", s.keyID, base64.RawURLEncoding.EncodeToString(sig))
	return artifact, nil
}

// Verify checks the detached signature against the artifact payload.
func (s *Ed25519Signer) Verify(artifact Artifact, signature string) bool {
	prefix := fmt.Sprintf("ed25519.%s_", s.keyID)
	if len(signature) <= len(prefix) || signature[:len(prefix)] != prefix {
		return false
	}
	sig, err := base64.RawURLEncoding.DecodeString(signature[len(prefix):])
	if err != nil {
		return false
	}
	msg, err := canonicalPayload(artifact)
	if err != nil {
		return false
	}
	return ed25519.Verify(s.pub, msg, sig)
}

// canonicalPayload is the byte string both Sign and Verify agree on: the
// JSON payload with the signature field zeroed.
func canonicalPayload(a Artifact) ([]byte, error) {
	a.Signature = ""
	return json.Marshal(a)
}
