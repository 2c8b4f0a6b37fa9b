// Package cookies defines the session cookie contract shared by the gate
// and the auth transport.
//
// The refresher returns an ordered list of Ops instead of mutating a
// response directly; the caller applies them to whichever response it
// ultimately writes, so a redirect carries a refreshed session just as a
// forwarded request does.
package cookies

import "net/http"

// Cookie names owned by the auth layer.
const (
	AccessTokenName  = "od_access_token"
	RefreshTokenName = "od_refresh_token"
)

// Op is one cookie mutation. MaxAge < 0 clears the cookie.
type Op struct {
	Name   string
	Value  string
	MaxAge int
}

// Set builds a set operation.
func Set(name, value string, maxAge int) Op {
	return Op{Name: name, Value: value, MaxAge: maxAge}
}

// Clear builds a clear operation.
func Clear(name string) Op {
	return Op{Name: name, MaxAge: -1}
}

// ClearAll clears both session cookies.
func ClearAll() []Op {
	return []Op{Clear(AccessTokenName), Clear(RefreshTokenName)}
}

// Policy carries the request-independent cookie attributes.
// Domain is the platform base host so tenant subdomains share the session.
type Policy struct {
	Domain string
	Secure bool
}

// Apply writes the operations onto the response in order.
func Apply(w http.ResponseWriter, ops []Op, policy Policy) {
	for _, op := range ops {
		http.SetCookie(w, &http.Cookie{
			Name:     op.Name,
			Value:    op.Value,
			Path:     "/",
			Domain:   policy.Domain,
			MaxAge:   op.MaxAge,
			HttpOnly: true,
			Secure:   policy.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// Credentials holds the raw token values read from a request.
type Credentials struct {
	AccessToken  string
	RefreshToken string
}

// Empty reports whether no session cookie was present at all.
func (c Credentials) Empty() bool {
	return c.AccessToken == "" && c.RefreshToken == ""
}

// Read extracts session credentials from the request cookies. Missing
// cookies read as empty strings.
func Read(r *http.Request) Credentials {
	var creds Credentials
	if c, err := r.Cookie(AccessTokenName); err == nil {
		creds.AccessToken = c.Value
	}
	if c, err := r.Cookie(RefreshTokenName); err == nil {
		creds.RefreshToken = c.Value
	}
	return creds
}
