// Package certificate implements the privacy-awareness quiz and the signed
// certificates issued to principals who pass it.
package certificate

import (
	"time"

	id "covenant/pkg/domain"
)

// Question is one multiple-choice quiz question. The correct option index is
// never serialized to clients.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Answer  int      `json:"-"`
}

// Certificate attests that a principal passed the quiz. The stamp is a
// content hash over the certificate fields, so tampering is detectable with
// the same tooling used for consent artifacts.
type Certificate struct {
	ID          id.CertificateID `json:"id"`
	PrincipalID id.PrincipalID   `json:"principalId"`
	Name        string           `json:"name"`
	Score       int              `json:"score"`
	Total       int              `json:"total"`
	IssuedAt    time.Time        `json:"issuedAt"`
	Stamp       string           `json:"stamp"`
}

// Result reports one quiz attempt.
type Result struct {
	Score       int          `json:"score"`
	Total       int          `json:"total"`
	Passed      bool         `json:"passed"`
	Certificate *Certificate `json:"certificate,omitempty"`
}
