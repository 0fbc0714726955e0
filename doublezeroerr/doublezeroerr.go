// Package doublezeroerr defines the closed set of program error kinds
// returned by every serviceability instruction processor and consulted by
// the activator when deciding whether a failed submission is a benign
// race or a real invariant violation.
package doublezeroerr

import "fmt"

// Kind is a program error kind. The set is closed: processors must return
// one of these, never a bare fmt.Errorf, so that callers (including the
// activator) can switch on Kind rather than string-match messages.
type Kind uint8

const (
	InvalidAccountType Kind = iota
	InvalidPDA
	NotAuthorized
	InvalidStatus
	CodeTooLong
	InvalidLocation
	InvalidExchange
	InvalidClientIP
	InvalidDzPrefix
	NoDzPrefixes
	MaxUsersExceeded
	MaxUnicastUsersExceeded
	MaxMulticastUsersExceeded
	ReferenceCountNotZero
	TenantNotInAccessPassAllowlist
	InterfaceHasEdgeAssignment
	AccessPassExpired
	DeviceNotActivated
	InvalidLink
	UnauthorizedAgent
	InvalidSamplingInterval
	AccountAlreadyExists
	AllocatorExhausted
	InvalidInstructionData
)

var names = map[Kind]string{
	InvalidAccountType:             "InvalidAccountType",
	InvalidPDA:                     "InvalidPDA",
	NotAuthorized:                  "NotAuthorized",
	InvalidStatus:                  "InvalidStatus",
	CodeTooLong:                    "CodeTooLong",
	InvalidLocation:                "InvalidLocation",
	InvalidExchange:                "InvalidExchange",
	InvalidClientIP:                "InvalidClientIp",
	InvalidDzPrefix:                "InvalidDzPrefix",
	NoDzPrefixes:                   "NoDzPrefixes",
	MaxUsersExceeded:               "MaxUsersExceeded",
	MaxUnicastUsersExceeded:        "MaxUnicastUsersExceeded",
	MaxMulticastUsersExceeded:      "MaxMulticastUsersExceeded",
	ReferenceCountNotZero:          "ReferenceCountNotZero",
	TenantNotInAccessPassAllowlist: "TenantNotInAccessPassAllowlist",
	InterfaceHasEdgeAssignment:     "InterfaceHasEdgeAssignment",
	AccessPassExpired:              "AccessPassExpired",
	DeviceNotActivated:             "DeviceNotActivated",
	InvalidLink:                    "InvalidLink",
	UnauthorizedAgent:              "UnauthorizedAgent",
	InvalidSamplingInterval:        "InvalidSamplingInterval",
	AccountAlreadyExists:           "AccountAlreadyExists",
	AllocatorExhausted:             "AllocatorExhausted",
	InvalidInstructionData:         "InvalidInstructionData",
}

func (k Kind) String() string {
	if s, ok := names[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Error wraps a Kind with a human-readable reason, matching the
// "Error: <message>" rendering the ledger and activator both emit (e.g.
// RejectUser's reason string).
type Error struct {
	Kind   Kind
	Reason string
}

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("Error: %s", e.Kind)
	}
	return fmt.Sprintf("Error: %s", e.Reason)
}

// Is lets errors.Is match on Kind regardless of the specific reason text.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinel returns a reusable *Error for a Kind with its default name as
// the reason, for use as an errors.Is comparison target.
func Sentinel(kind Kind) *Error { return &Error{Kind: kind, Reason: kind.String()} }
