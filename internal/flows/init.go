package flows

import "context"

// InitOutcome is the result of session initialization.
type InitOutcome int

const (
	// InitNoCredential means no access token was stored; nothing was fetched.
	InitNoCredential InitOutcome = iota
	// InitConfirmed means the identity fetch succeeded.
	InitConfirmed
	// InitFailed means the identity fetch failed. Whether the credential survives depends
	// on the error.
	InitFailed
)

// InitResult carries the init outcome and the fetch error, if any.
type InitResult struct {
	Outcome InitOutcome
	Err     error
}

// InitDeps captures init flow dependencies. FetchIdentity performs the request through
// the coordinated transport, so an expired access token is refreshed before it fails.
type InitDeps struct {
	HasAccessToken func() bool
	FetchIdentity  func(ctx context.Context) error
}

// RunInit confirms a locally stored credential against the backend.
func RunInit(ctx context.Context, deps InitDeps) InitResult {
	if !deps.HasAccessToken() {
		return InitResult{Outcome: InitNoCredential}
	}
	if err := deps.FetchIdentity(ctx); err != nil {
		return InitResult{Outcome: InitFailed, Err: err}
	}
	return InitResult{Outcome: InitConfirmed}
}
