package shopify

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// idTokenLeeway absorbs small clock skew between the platform and the app
// when validating exp/nbf.
const idTokenLeeway = 10 * time.Second

// IDToken is a successfully decoded session token from an embedded surface.
// Exchangeable is fixed by the verifying surface, not derived from the token:
// admin-home and admin-UI-extension tokens may be traded for an access token,
// checkout/customer-account extension tokens may not.
type IDToken struct {
	Exchangeable bool
	Token        string
	Claims       jwt.MapClaims
}

// Shop returns the shop label from the token's dest claim.
func (t *IDToken) Shop() string {
	dest, _ := t.Claims["dest"].(string)
	return NormalizeShop(dest)
}

// UserID returns the sub claim, the merchant user the session belongs to.
func (t *IDToken) UserID() string {
	sub, _ := t.Claims["sub"].(string)
	return sub
}

// decodeIDToken verifies an HS256 compact token against the configured
// secrets and validates the audience. The old secret is tried first so
// tokens minted just before a secret rotation keep verifying; the first
// secret that passes signature and expiry checks wins.
//
// The failure code is one of expired_id_token, invalid_id_token or
// invalid_aud; decode never panics or leaks a library error across the
// boundary.
func decodeIDToken(token string, creds Credentials, now func() time.Time) (jwt.MapClaims, string, string) {
	if now == nil {
		now = time.Now
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithLeeway(idTokenLeeway),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
	)

	var claims jwt.MapClaims
	var lastErr error
	verified := false
	for _, secret := range creds.rotationSecrets() {
		c := jwt.MapClaims{}
		tok, err := parser.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		})
		if err == nil && tok.Valid {
			claims = c
			verified = true
			break
		}
		lastErr = err
		// An expired error means the signature checked out under this
		// secret; no other secret can also match it, stop here.
		if errors.Is(err, jwt.ErrTokenExpired) {
			break
		}
	}

	if !verified {
		if errors.Is(lastErr, jwt.ErrTokenExpired) {
			return nil, CodeExpiredIDToken, "id token is expired"
		}
		return nil, CodeInvalidIDToken, "id token could not be verified"
	}

	aud, err := claims.GetAudience()
	if err != nil || len(aud) == 0 || aud[0] != creds.ClientID {
		return nil, CodeInvalidAud, "id token audience does not match the configured client id"
	}

	return claims, "", ""
}
