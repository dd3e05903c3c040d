package api

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Joseda-hg/lazytodo/internal/session"
)

// authTransport decides, per request, whether the stored access token can be
// attached, has to be refreshed first, or must be discarded.
type authTransport struct {
	client *Client
	base   http.RoundTripper
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c := t.client

	access := c.session.Access()
	if access == "" {
		return t.base.RoundTrip(req)
	}

	if _, err := session.Decode(access); err != nil {
		c.expire(req.Context(), err.Error())
		return t.base.RoundTrip(req)
	}

	if !session.ShouldAttach(access, c.now()) {
		if err := c.RefreshAccess(req.Context()); err != nil {
			if req.Body != nil {
				_ = req.Body.Close()
			}
			return nil, err
		}
		access = c.session.Access()
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+access)
	return t.base.RoundTrip(authed)
}

// loggingTransport tags each request with an ID and logs its outcome.
type loggingTransport struct {
	base   http.RoundTripper
	logger *log.Logger
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	requestID := uuid.NewString()
	tagged := req.Clone(req.Context())
	tagged.Header.Set("X-Request-ID", requestID)

	start := time.Now()
	resp, err := t.base.RoundTrip(tagged)
	duration := time.Since(start)

	if err != nil {
		t.logger.Printf("[ERROR] %s %s failed in %v (request: %s): %v", req.Method, req.URL.Path, duration, requestID, err)
		return nil, err
	}

	level := "INFO"
	if resp.StatusCode >= 400 {
		level = "ERROR"
	}
	t.logger.Printf("[%s] %s %s %d in %v (request: %s)", level, req.Method, req.URL.Path, resp.StatusCode, duration, requestID)
	return resp, nil
}
