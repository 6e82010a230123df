// Package auth is the identity and access control core of the course
// marketplace.
//
// Tokens:
//   - TokenCodec signs and verifies HS256 tokens with one shared secret.
//     Decode tells malformed and expired tokens apart internally, the
//     authenticators collapse both into ErrInvalidOrExpiredToken.
//
// Authentication:
//   - RequestAuthenticator reads an exact "Bearer <token>" header.
//   - ConnectionAuthenticator walks the handshake carriers in order: auth
//     payload token, legacy accessToken, Authorization header, query string.
//   - Both resolve the subject through a CredentialStore on every call, so a
//     role change is visible to the next request without reissuing tokens.
//
// Authorization:
//   - Authorize is a pure predicate over the resolved Identity. Roles are
//     exact matches, admin is not a superset of member.
//
// Role transitions:
//   - RoleTransitionAuthority owns trainer applications. Approving one
//     writes the decision and the promoted role in a single transaction.
//
// Activity sinks:
//   - ActivitySink receives registration, login, authentication failure and
//     decision events. Sinks run best-effort, errors are logged and never
//     fail the caller.
package auth
