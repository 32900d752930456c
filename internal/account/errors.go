package account

import "errors"

var (
	ErrNotFound = errors.New("account: not found")
	// ErrIdentityIncomplete indicates the identity provider returned no
	// usable email for the subject.
	ErrIdentityIncomplete = errors.New("account: identity incomplete")
)
