package errorx

import (
	"encoding/json"
	"errors"
	"net/http"
)

// OAuth2Error is the wire-level error returned by the credential
// endpoints. ErrorType follows RFC 6749 error codes; ErrorCode narrows
// the cause for clients that care.
type OAuth2Error struct {
	ErrorType        string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	HTTPStatus       int    `json:"-"`
}

func (e *OAuth2Error) Error() string {
	out, _ := json.Marshal(e)
	return string(out)
}

var (
	ErrInvalidRequest = &OAuth2Error{
		ErrorType:  "invalid_request",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrInvalidClient covers unknown client ids and secret mismatches.
	ErrInvalidClient = &OAuth2Error{
		ErrorType:  "invalid_client",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrInvalidGrant covers unknown, expired and already-redeemed
	// grants as well as unknown refresh tokens. Expired and missing are
	// indistinguishable to callers on purpose.
	ErrInvalidGrant = &OAuth2Error{
		ErrorType:  "invalid_grant",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrUnsupportedGrantType = &OAuth2Error{
		ErrorType:  "unsupported_grant_type",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidScope = &OAuth2Error{
		ErrorType:  "invalid_scope",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrInvalidRedirectURI = &OAuth2Error{
		ErrorType:  "invalid_request",
		ErrorCode:  "invalid_redirect_uri",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrUnauthorized is the user-credential counterpart of
	// ErrInvalidClient, raised by registration and the password grant.
	ErrUnauthorized = &OAuth2Error{
		ErrorType:  "access_denied",
		ErrorCode:  "authentication_failed",
		HTTPStatus: http.StatusUnauthorized,
	}

	// ErrConflict signals a uniqueness violation on a generated
	// credential or a duplicate unexpired grant. Generation conflicts
	// are retried internally and never surface unless retries are
	// exhausted.
	ErrConflict = &OAuth2Error{
		ErrorType:  "conflict",
		HTTPStatus: http.StatusConflict,
	}

	ErrTokenExpired = &OAuth2Error{
		ErrorType:  "invalid_grant",
		ErrorCode:  "token_expired",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrTokenNotFound = &OAuth2Error{
		ErrorType:  "invalid_grant",
		ErrorCode:  "invalid_token",
		HTTPStatus: http.StatusBadRequest,
	}

	// ErrStoreUnavailable marks a transient entity-store failure. The
	// boundary layer may retry; the core never does.
	ErrStoreUnavailable = &OAuth2Error{
		ErrorType:  "temporarily_unavailable",
		ErrorCode:  "store_unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
	}

	// ErrInternal marks an exhausted retry budget or a detected
	// invariant violation. Fatal for the request, always logged.
	ErrInternal = &OAuth2Error{
		ErrorType:  "server_error",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// ConvertToOAuth2Error converts any error to OAuth2Error.
// If the error is already an OAuth2Error it is returned directly;
// otherwise it is wrapped as a server error with the original message.
func ConvertToOAuth2Error(err error) *OAuth2Error {
	var oauthErr *OAuth2Error
	if errors.As(err, &oauthErr) {
		return oauthErr
	}

	return &OAuth2Error{
		ErrorType:        "server_error",
		ErrorDescription: err.Error(),
		HTTPStatus:       http.StatusInternalServerError,
	}
}
