package goSession

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// maxDrain bounds how much of a 401 body is read before the connection is reused.
const maxDrain = 64 << 10

// Transport is an [http.RoundTripper] that attaches the session credential, refreshes
// it once on authorization failure, and replays the failed request once.
//
// Non-authorization failures, transport errors and replayed requests that fail again are
// returned to the caller unchanged.
type Transport struct {
	base        http.RoundTripper
	interceptor *RequestInterceptor
	coord       *refreshCoordinator
	cfg         *Config
	metrics     *Metrics
}

// RoundTrip implements [http.RoundTripper].
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if withoutAuthFromContext(req.Context()) {
		return t.send(req)
	}

	req, err := rewindable(req)
	if err != nil {
		return nil, err
	}

	out, token := t.interceptor.Attach(req)
	resp, err := t.send(out)
	if err != nil {
		return nil, err
	}
	if !t.cfg.isFailureStatus(resp.StatusCode) {
		return resp, nil
	}

	t.metrics.Inc(MetricAuthFailure)
	if IsRetried(req.Context()) {
		t.metrics.Inc(MetricRetryExhausted)
		return resp, nil
	}
	discard(resp)

	cred, err := t.coord.resolve(req.Context(), token)
	if err != nil {
		return nil, err
	}

	replay, err := replayOf(req)
	if err != nil {
		return nil, err
	}
	replay = t.interceptor.withToken(replay, cred.AccessToken)

	t.metrics.Inc(MetricReplaySent)
	resp, err = t.send(replay)
	if err != nil {
		return nil, err
	}
	if t.cfg.isFailureStatus(resp.StatusCode) {
		t.metrics.Inc(MetricAuthFailure)
		t.metrics.Inc(MetricRetryExhausted)
	}
	return resp, nil
}

// State reports whether a refresh episode is in flight.
func (t *Transport) State() CoordinatorState {
	return t.coord.State()
}

func (t *Transport) send(req *http.Request) (*http.Response, error) {
	t.metrics.Inc(MetricRequestSent)
	return t.base.RoundTrip(req)
}

// rewindable returns a request whose body can be re-read through GetBody. Requests built
// by http.NewRequest over common readers already qualify and are returned as is.
func rewindable(req *http.Request) (*http.Request, error) {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return req, nil
	}

	data, err := io.ReadAll(req.Body)
	closeErr := req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestNotReplayable, err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestNotReplayable, closeErr)
	}

	out := req.Clone(req.Context())
	out.Body = io.NopCloser(bytes.NewReader(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	out.ContentLength = int64(len(data))
	return out, nil
}

func replayOf(req *http.Request) (*http.Request, error) {
	out := req.Clone(withRetried(req.Context()))
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequestNotReplayable, err)
		}
		out.Body = body
	}
	return out, nil
}

func discard(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	_ = resp.Body.Close()
}
