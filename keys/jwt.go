package keys

import (
	"github.com/golang-jwt/jwt/v5"
)

// jwtPrefix is the base64 encoding of `{"` followed by a JSON header key,
// shared by every JWT regardless of algorithm.
const jwtPrefix = "eyJ"

// LooksLikeJWT reports whether a credential carries the JWT header signature
func LooksLikeJWT(raw string) bool {
	return len(raw) >= len(jwtPrefix) && raw[:len(jwtPrefix)] == jwtPrefix
}

// jwtAlgorithm attempts an unverified parse of a suspected JWT and returns
// the signing algorithm it claims. Diagnostic only: the rejection decision is
// made on the prefix alone, so malformed tokens are still rejected even when
// this returns ok=false.
func jwtAlgorithm(raw string) (string, bool) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil || token.Method == nil {
		return "", false
	}
	return token.Method.Alg(), true
}
