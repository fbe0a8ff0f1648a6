// Package auditlog records every consent decision as an append-only trail.
// Entries are never mutated or deleted.
package auditlog

import (
	"strings"
	"time"

	"github.com/mssola/useragent"

	dErrors "covenant/pkg/domain-errors"
)

// Action classifies what a log entry records.
type Action string

const (
	ActionGrant    Action = "grant"
	ActionDeny     Action = "deny"
	ActionWithdraw Action = "withdraw"
	ActionRenew    Action = "renew"
	ActionUpdate   Action = "update"
)

// ParseAction validates an action value coming off the wire, e.g. a query
// string filter.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionGrant, ActionDeny, ActionWithdraw, ActionRenew, ActionUpdate:
		return a, nil
	}
	return "", dErrors.New(dErrors.CodeInvalidInput, "unknown action: "+s)
}

// Entry is emitted from the consent ledger on every transition. Keep it
// transport-agnostic so stores and sinks can fan out.
type Entry struct {
	ID          string            `json:"id"`
	Timestamp   time.Time         `json:"timestamp"`
	PrincipalID string            `json:"principalId"`
	Action      Action            `json:"action"`
	PurposeID   string            `json:"purposeId"`
	IPAddress   string            `json:"ipAddress"` // anonymized before storage
	UserAgent   string            `json:"userAgent"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Meta carries request-scoped context from the transport layer into the
// ledger so log entries can capture where a decision came from.
type Meta struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// DeviceDisplayName renders a user agent string as a short human label,
// e.g. "Chrome on Mac OS X". Unknown agents come back as "unknown device".
func DeviceDisplayName(userAgentString string) string {
	if userAgentString == "" {
		return "unknown device"
	}
	ua := useragent.New(userAgentString)
	browser, _ := ua.Browser()
	os := ua.OS()

	browser = strings.TrimSpace(browser)
	os = strings.TrimSpace(os)
	if browser == "" && os == "" {
		return "unknown device"
	}
	if os == "" {
		return browser
	}
	if browser == "" {
		return os
	}
	return browser + " on " + os
}
