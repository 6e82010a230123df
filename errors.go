package auth

import (
	stderrors "errors"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
)

const (
	TextCodeServerMisconfigured    = "SERVER_MISCONFIGURED"
	TextCodeAuthenticationRequired = "AUTHENTICATION_REQUIRED"
	TextCodeInvalidOrExpiredToken  = "INVALID_OR_EXPIRED_TOKEN"
	TextCodeForbidden              = "FORBIDDEN"
	TextCodeValidation             = "VALIDATION_FAILED"
	TextCodeConflict               = "CONFLICT"
	TextCodeNotFound               = "NOT_FOUND"
	TextCodeTokenInvalid           = "TOKEN_INVALID"
	TextCodeTokenExpired           = "TOKEN_EXPIRED"
	TextCodeInvalidConfig          = "INVALID_CONFIGURATION"
	TextCodeInvalidCredentials     = "INVALID_CREDENTIALS"
)

// message shared by every client-visible token or subject failure
const invalidTokenMessage = "invalid or expired token"

// ErrServerMisconfigured is returned when no signing secret is configured
var ErrServerMisconfigured = errors.New("server misconfiguration", errors.CategoryInternal).
	WithTextCode(TextCodeServerMisconfigured).
	WithCode(errors.CodeInternal)

// ErrAuthenticationRequired is returned when no credential was supplied
var ErrAuthenticationRequired = errors.New("authentication required", errors.CategoryAuth).
	WithTextCode(TextCodeAuthenticationRequired).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidOrExpiredToken hides which of ErrTokenInvalid or ErrTokenExpired happened
var ErrInvalidOrExpiredToken = errors.New(invalidTokenMessage, errors.CategoryAuth).
	WithTextCode(TextCodeInvalidOrExpiredToken).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidAuthentication is returned when a verified token names no subject
// we know. Clients see it exactly like ErrInvalidOrExpiredToken.
var ErrInvalidAuthentication = errors.New(invalidTokenMessage, errors.CategoryAuth).
	WithTextCode(TextCodeInvalidOrExpiredToken).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is returned when the identity role is not allowed
var ErrForbidden = errors.New("forbidden", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

var ErrValidation = errors.New("validation failed", errors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(errors.CodeBadRequest)

var ErrConflict = errors.New("conflict", errors.CategoryConflict).
	WithTextCode(TextCodeConflict).
	WithCode(errors.CodeConflict)

var ErrNotFound = errors.New("not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// ErrTokenInvalid covers malformed tokens and signature mismatches
var ErrTokenInvalid = errors.New("invalid token", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned for a correctly signed token past its exp
var ErrTokenExpired = errors.New("token is expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidConfig is returned for malformed configuration values such as a TTL
var ErrInvalidConfig = errors.New("invalid configuration", errors.CategoryInternal).
	WithTextCode(TextCodeInvalidConfig).
	WithCode(errors.CodeInternal)

// ErrInvalidCredentials is returned by Login for unknown emails and bad passwords alike
var ErrInvalidCredentials = errors.New("invalid email or password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = stderrors.New("password must not be empty")

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = stderrors.New("password does not match")

// HasTextCode reports whether err carries a rich error with the given text code
func HasTextCode(err error, code string) bool {
	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	return err != nil && (stderrors.Is(err, ErrTokenExpired) || HasTextCode(err, TextCodeTokenExpired))
}

// IsTokenInvalidError will check for malformed or badly signed tokens
func IsTokenInvalidError(err error) bool {
	return err != nil && (stderrors.Is(err, ErrTokenInvalid) || HasTextCode(err, TextCodeTokenInvalid))
}

// IsNotFound reports not found errors from this package or the repository layer
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, ErrIdentityNotFound) || HasTextCode(err, TextCodeNotFound) {
		return true
	}
	return repository.IsRecordNotFound(err) || errors.IsNotFound(err)
}

// with clones a sentinel so metadata never leaks into the shared value
func with(sentinel *errors.Error, metadata map[string]any) *errors.Error {
	clone := sentinel.Clone()
	if clone == nil {
		return sentinel
	}
	if len(metadata) == 0 {
		return clone
	}
	return clone.WithMetadata(metadata)
}

// validationError turns ozzo errors into ErrValidation with field details
func validationError(err error) error {
	if err == nil {
		return nil
	}

	fields := map[string]any{}
	var verrs validation.Errors
	if stderrors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				fields[field] = ferr.Error()
			}
		}
	} else {
		fields["_"] = err.Error()
	}

	return with(ErrValidation, map[string]any{"fields": fields})
}
