package sim

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"trafficsim/internal/payload"
	"trafficsim/internal/profile"
	"trafficsim/internal/stats"
)

// FailureStatus is the sentinel recorded for transport-level failures
// (timeouts, connection errors) so the status histogram treats them
// uniformly with server-side 5xx responses.
const FailureStatus = 500

// Executor issues one HTTP call for a session against a selected
// endpoint. Calls are bounded by the client timeout, never by the run
// context: an in-flight request completes on its own during shutdown.
type Executor struct {
	client   *http.Client
	provider *payload.Provider
	logger   *zap.Logger
	detailed bool
}

func NewExecutor(timeout time.Duration, provider *payload.Provider, logger *zap.Logger, detailed bool) *Executor {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}

	return &Executor{
		client: &http.Client{
			Timeout:   timeout,
			Transport: t,
		},
		provider: provider,
		logger:   logger,
		detailed: detailed,
	}
}

// Do resolves the endpoint's path, issues the request with the
// session's identity headers and classifies the outcome. Latency spans
// from just before dispatch to after the full body has been consumed.
// The resolved path is returned so the session can update its hints.
func (e *Executor) Do(sess *Session, ep profile.Endpoint) (stats.Outcome, string) {
	path := e.resolvePath(sess, ep)
	url := ep.BaseURL + path

	var body io.Reader
	hasBody := false
	if (ep.Method == http.MethodPost || ep.Method == http.MethodPut) && ep.PayloadGenerator != "" {
		data, err := json.Marshal(e.provider.Payload(ep.PayloadGenerator, sess.rng))
		if err == nil {
			body = bytes.NewReader(data)
			hasBody = true
		}
	}

	outcome := stats.Outcome{Endpoint: path, Method: ep.Method}

	req, err := http.NewRequest(ep.Method, url, body)
	if err != nil {
		outcome.Status = FailureStatus
		outcome.Err = err.Error()
		return outcome, path
	}
	for k, v := range sess.Headers() {
		req.Header.Set(k, v)
	}
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	if err != nil {
		outcome.Latency = time.Since(start)
		outcome.Status = FailureStatus
		outcome.Err = err.Error()
		if e.detailed {
			e.logger.Warn("request failed",
				zap.String("method", ep.Method),
				zap.String("url", url),
				zap.Error(err))
		}
		return outcome, path
	}

	// Latency covers status + full body, matching what a client sees.
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	outcome.Latency = time.Since(start)
	outcome.Status = resp.StatusCode

	if e.detailed {
		e.logger.Info("request",
			zap.String("method", ep.Method),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", outcome.Latency))
	}
	return outcome, path
}

// resolvePath substitutes every {placeholder} segment with the
// configured path generator's output (or the default parameter when no
// generator is configured).
func (e *Executor) resolvePath(sess *Session, ep profile.Endpoint) string {
	if !strings.Contains(ep.Path, "{") {
		return ep.Path
	}

	param := payload.DefaultPathParam
	if ep.PathGenerator != "" {
		param = e.provider.PathParam(ep.PathGenerator, sess.rng)
	}

	var b strings.Builder
	rest := ep.Path
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		b.WriteString(rest[:open])
		b.WriteString(param)
		rest = rest[open+end+1:]
	}
}
