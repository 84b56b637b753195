// Package auth authenticates operators calling the inbox HTTP API.
//
// Operators present an HS256 JWT signed with auth.jwt_secret:
//
//	Authorization: Bearer <token>
//
// Tokens are minted with `coven-inbox token --subject NAME`. The subject
// becomes the operator name available to handlers via OperatorFromContext.
// When no secret is configured the API is served without authentication.
package auth
