package services

import (
	"errors"
	"fmt"

	"github.com/ieraasyl/ChatGateway/internal/models"
)

var (
	// ErrMissingAuthorization is returned when a protected proxy route is
	// called with neither an Authorization header nor a signed-in browser
	// context.
	ErrMissingAuthorization = errors.New("missing authorization header")

	// ErrInvalidCredentials is returned when the identity endpoint rejects
	// the username and password. Its text is shown to the user as is.
	ErrInvalidCredentials = errors.New("Credenciales incorrectas o error al obtener tokens.")

	// ErrVerificationFailed is returned when the tokens were issued but the
	// verify endpoint rejected them or returned an unreadable profile.
	ErrVerificationFailed = errors.New("Error al verificar el token o al obtener los datos del usuario.")

	// ErrProviderDisabled is returned for an OAuth provider without client
	// credentials.
	ErrProviderDisabled = errors.New("provider is not enabled")

	// ErrInvalidState is returned when an OAuth callback carries an unknown,
	// expired, reused or foreign state value.
	ErrInvalidState = errors.New("invalid oauth state")
)

// CredentialsError carries the identity endpoint's "detail" message.
// It matches ErrInvalidCredentials with errors.Is.
type CredentialsError struct {
	Detail string
}

func (e *CredentialsError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return ErrInvalidCredentials.Error()
}

func (e *CredentialsError) Is(target error) bool {
	return target == ErrInvalidCredentials
}

// BackendError is a non-2xx answer from the assistant backend. Body is the
// raw response text, relayed to the caller as "details".
type BackendError struct {
	Status int
	Body   string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("Backend error: %d", e.Status)
}

// NetworkError is a transport failure talking to an upstream service.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// OAuthError is any failure of the OAuth callback for a provider.
type OAuthError struct {
	Provider models.Provider
	Message  string
	Err      error
}

func (e *OAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s oauth: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s oauth: %s", e.Provider, e.Message)
}

func (e *OAuthError) Unwrap() error {
	return e.Err
}
