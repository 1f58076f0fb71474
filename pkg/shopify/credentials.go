package shopify

import "strings"

// PlatformDomain is the suffix shared by every shop's admin domain.
const PlatformDomain = ".myshopify.com"

// Credentials holds the app's API credentials. OldClientSecret is optional;
// when set, verifiers accept signatures/tokens minted with either secret so
// the secret can be rotated without downtime.
//
// Credentials is a plain immutable value: build it once (usually from
// config) and pass it by value everywhere.
type Credentials struct {
	ClientID        string
	ClientSecret    string
	OldClientSecret string
}

// secrets returns the verification secrets in signature-check order:
// current first, then the old one if configured.
func (c Credentials) secrets() []string {
	if c.OldClientSecret != "" {
		return []string{c.ClientSecret, c.OldClientSecret}
	}
	return []string{c.ClientSecret}
}

// rotationSecrets returns the secrets in ID-token order: the old secret is
// tried first so that tokens minted just before a rotation keep verifying.
func (c Credentials) rotationSecrets() []string {
	if c.OldClientSecret != "" {
		return []string{c.OldClientSecret, c.ClientSecret}
	}
	return []string{c.ClientSecret}
}

// NormalizeShop reduces a shop reference ("https://my-shop.myshopify.com/",
// "my-shop.myshopify.com", "my-shop") to the bare shop label ("my-shop").
func NormalizeShop(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSuffix(s, PlatformDomain)
	return s
}

// ShopDomain expands a shop label back to the full admin domain.
// Inputs that already carry the suffix pass through unchanged.
func ShopDomain(shop string) string {
	if strings.HasSuffix(shop, PlatformDomain) {
		return shop
	}
	return shop + PlatformDomain
}

// ReferencesPlatform reports whether the value points at a shop on the
// platform domain (with or without a scheme).
func ReferencesPlatform(s string) bool {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	if i := strings.IndexByte(s, '/'); i >= 0 {
		s = s[:i]
	}
	return strings.HasSuffix(s, PlatformDomain) && len(s) > len(PlatformDomain)
}
