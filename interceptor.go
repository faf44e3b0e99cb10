package goSession

import (
	"net/http"
	"strings"
)

// RequestInterceptor attaches the current access token to outgoing requests.
type RequestInterceptor struct {
	store      *CredentialStore
	headerName string
	scheme     string
}

// NewRequestInterceptor returns an interceptor reading from store. Empty headerName and
// scheme default to Authorization and Bearer.
func NewRequestInterceptor(store *CredentialStore, headerName, scheme string) *RequestInterceptor {
	if strings.TrimSpace(headerName) == "" {
		headerName = "Authorization"
	}
	return &RequestInterceptor{
		store:      store,
		headerName: http.CanonicalHeaderKey(headerName),
		scheme:     strings.TrimSpace(scheme),
	}
}

// Attach returns req with the stored access token attached, and that token. When no
// token is stored, or req's context is marked with [WithoutAuth], req is returned
// unmodified with an empty token. Attach never blocks and never fails.
//
// A header already set by the caller is overwritten so the credential on the wire is
// always the one the coordinator can refresh.
func (i *RequestInterceptor) Attach(req *http.Request) (*http.Request, string) {
	if withoutAuthFromContext(req.Context()) {
		return req, ""
	}
	token, ok := i.store.AccessToken()
	if !ok {
		return req, ""
	}
	return i.withToken(req, token), token
}

func (i *RequestInterceptor) withToken(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	out.Header.Set(i.headerName, i.value(token))
	return out
}

func (i *RequestInterceptor) value(token string) string {
	if i.scheme == "" {
		return token
	}
	return i.scheme + " " + token
}
