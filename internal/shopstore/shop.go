package shopstore

import (
	"time"

	"appauth/pkg/shopify"
)

// Record is the persisted credential state for one shop. The core library
// never stores tokens; this service does, as the embedding caller.
type Record struct {
	ID                  string
	Shop                string
	AccessMode          string
	AccessToken         string
	Scope               string
	ExpiresAt           time.Time
	RefreshToken        string
	RefreshTokenExpires time.Time
	UserID              int64
	InstalledAt         time.Time
}

// Token converts the record back into the library's token shape.
func (r *Record) Token() *shopify.AccessToken {
	t := &shopify.AccessToken{
		AccessMode:          r.AccessMode,
		Shop:                r.Shop,
		Token:               r.AccessToken,
		Scope:               r.Scope,
		Expires:             r.ExpiresAt,
		RefreshToken:        r.RefreshToken,
		RefreshTokenExpires: r.RefreshTokenExpires,
	}
	if r.UserID != 0 {
		t.User = &shopify.TokenUser{ID: r.UserID}
	}
	return t
}

// FromToken maps a freshly obtained token onto a storable record.
func FromToken(t *shopify.AccessToken) Record {
	rec := Record{
		Shop:                t.Shop,
		AccessMode:          t.AccessMode,
		AccessToken:         t.Token,
		Scope:               t.Scope,
		ExpiresAt:           t.Expires,
		RefreshToken:        t.RefreshToken,
		RefreshTokenExpires: t.RefreshTokenExpires,
	}
	if t.User != nil {
		rec.UserID = t.User.ID
	}
	return rec
}
