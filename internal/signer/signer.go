// Package signer produces signed artifacts for consent transitions.
//
// The default MockSigner derives a deterministic, inspectable record with a
// content-hash "signature". It is NOT cryptographic and must not be treated
// as tamper-proof; it exists so every consent change carries a verifiable
// looking artifact with stable provenance fields. Deployments that need real
// signatures use the Ed25519 signer behind the same interface.
package signer

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SchemaVersion identifies the artifact payload layout.
const SchemaVersion = "1.0"

// SignaturePrefix is the fixed marker the mock verifier checks for.
const SignaturePrefix = "sig_KeyID"

// Principal identifies the data subject as the signer sees it.
type Principal struct {
	ID     string `json:"id"`
	IDType string `json:"idType"` // "email" or "mobile", inferred at signing
	Email  string `json:"email,omitempty"`
	Mobile string `json:"mobile,omitempty"`
}

// PurposeRef points at the catalog purpose a consent decision applies to.
type PurposeRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Consent captures the decision being attested.
type Consent struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"ts"`
	ValidUntil time.Time `json:"validUntil"`
}

// Provider identifies the data provider descriptor embedded in every artifact.
type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Artifact is a signed snapshot of a single consent transition. It is
// immutable once created; one artifact is produced per transition.
type Artifact struct {
	SchemaVersion string     `json:"schemaVersion"`
	ConsentID     string     `json:"consentId"`
	Principal     Principal  `json:"principal"`
	Purpose       PurposeRef `json:"purpose"`
	Consent       Consent    `json:"consent"`
	Frequency     string     `json:"frequency"`
	DataProvider  Provider   `json:"dataProvider"`
	Signature     string     `json:"signature"`
}

// Signer derives a signed artifact from a consent decision and checks
// signatures on existing artifacts.
type Signer interface {
	Sign(principal Principal, purpose PurposeRef, status string, now time.Time) (Artifact, error)
	Verify(artifact Artifact, signature string) bool
}

// MockSigner is the placeholder scheme: signature is a non-cryptographic
// content hash of the JSON payload wrapped in a fixed key envelope,
// formatted sig_KeyID.<id>_<hashHex>_<epochMillis>. Same payload content
// yields the same hash component; only the trailing timestamp varies.
type MockSigner struct {
	keyID    string
	validity time.Duration
	provider Provider
}

// Option configures a MockSigner.
type Option func(*MockSigner)

// WithValidity overrides the default one-year consent validity window.
func WithValidity(d time.Duration) Option {
	return func(s *MockSigner) {
		if d > 0 {
			s.validity = d
		}
	}
}

// WithProvider overrides the data provider descriptor.
func WithProvider(p Provider) Option {
	return func(s *MockSigner) {
		s.provider = p
	}
}

// NewMock builds a MockSigner. keyID becomes part of the signature envelope;
// an empty keyID defaults to "1".
func NewMock(keyID string, opts ...Option) *MockSigner {
	if keyID == "" {
		keyID = "1"
	}
	keyID = strings.TrimPrefix(keyID, "KeyID.")
	s := &MockSigner{
		keyID:    keyID,
		validity: 365 * 24 * time.Hour,
		provider: Provider{ID: "covenant", Name: "Covenant Consent Service"},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sign builds the artifact payload and attaches the mock signature.
// The consent ID is random per call; principal id-type is inferred from
// whether the principal carries an email.
func (s *MockSigner) Sign(principal Principal, purpose PurposeRef, status string, now time.Time) (Artifact, error) {
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

	hashHex, err := ContentHash(artifact)
	if err != nil {
		return Artifact{}, fmt.Errorf("hash artifact payload: %w", err)
	}
	artifact.Signature = fmt.Sprintf("%s.%s_%s_%d", SignaturePrefix, s.keyID, hashHex, now.UnixMilli())
	return artifact, nil
}

// Verify is a placeholder predicate: true iff the signature carries the fixed
// mock key prefix. It does not recompute the hash. Kept deliberately weak so
// nobody mistakes the mock scheme for tamper evidence.
func (s *MockSigner) Verify(_ Artifact, signature string) bool {
	return strings.HasPrefix(signature, SignaturePrefix)
}

// ContentHash returns the hex FNV-1a digest of the JSON-serialized payload
// with any signature field zeroed. Deterministic for identical content. Also
// reused by the certificate stamping flow.
func ContentHash(payload any) (string, error) {
	if a, ok := payload.(Artifact); ok {
		a.Signature = ""
		payload = a
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	h := fnv.New64a()
	h.Write(raw) //nolint:errcheck // hash.Hash never errors
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func inferIDType(p Principal) string {
	if p.Email != "" {
		return "email"
	}
	return "mobile"
}
