package oauth

import "fmt"

type TokenVerificationError struct {
	Inner error
}

func (e *TokenVerificationError) Error() string {
	return fmt.Sprintf("failed to verify token: %v", e.Inner)
}

func (e *TokenVerificationError) Unwrap() error {
	return e.Inner
}

type MissingScopesError struct {
	Required string
}

func (e *MissingScopesError) Error() string {
	return fmt.Sprintf("token missing required scopes %s", e.Required)
}
