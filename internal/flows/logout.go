package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	CurrentTokens func() TokenPair
	// Revoke asks the backend to end the session. Nil skips the call.
	Revoke func(ctx context.Context, accessToken, refreshToken string) error
	Clear  func()
}

// RunLogout revokes the session server-side (best effort) and always clears the local
// credential. It returns the revoke error, if any.
func RunLogout(ctx context.Context, deps LogoutDeps) error {
	tokens := deps.CurrentTokens()
	defer deps.Clear()

	if deps.Revoke == nil || (tokens.AccessToken == "" && tokens.RefreshToken == "") {
		return nil
	}
	return deps.Revoke(ctx, tokens.AccessToken, tokens.RefreshToken)
}
