// Package auth signs storefront users in through an external identity
// provider and tracks who is signed in per client session.
package auth

import (
	"context"
	"errors"
)

var (
	ErrInvalidCredential  = errors.New("invalid credential")
	ErrVerificationFailed = errors.New("phone verification failed")
	ErrNotSignedIn        = errors.New("not signed in")
)

const DefaultUserName = "User"

type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Email         string `json:"email,omitempty"`
	PhoneNumber   string `json:"phone_number,omitempty"`
	PhotoURL      string `json:"photo_url,omitempty"`
	EmailVerified bool   `json:"is_email_verified"`
	PhoneVerified bool   `json:"is_phone_verified"`
}

type EventKind int

const (
	// CodeSent means an SMS code is on its way; VerificationID identifies it.
	CodeSent EventKind = iota
	// AutoVerified means the provider completed verification without a code.
	AutoVerified
	Failed
)

func (k EventKind) String() string {
	switch k {
	case CodeSent:
		return "code_sent"
	case AutoVerified:
		return "auto_verified"
	default:
		return "failed"
	}
}

// VerificationEvent reports progress of a phone verification.
type VerificationEvent struct {
	Kind           EventKind
	VerificationID string
	User           *User // set for AutoVerified
	Err            error // set for Failed
}

type PhoneRequest struct {
	PhoneNumber    string
	RecaptchaToken string
}

// Provider is the identity backend. Implementations must be safe for
// concurrent use.
type Provider interface {
	SignInWithGoogle(ctx context.Context, idToken string) (User, error)
	// StartPhoneVerification sends a code to the phone and returns the
	// verification id. onEvent, if not nil, receives every progress event.
	StartPhoneVerification(ctx context.Context, req PhoneRequest, onEvent func(VerificationEvent)) (string, error)
	VerifyPhoneCode(ctx context.Context, verificationID, code string) (User, error)
}
