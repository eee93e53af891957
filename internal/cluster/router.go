package cluster

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cisco7507/langid-mr/internal/apperrors"
)

// ParseJobOwner extracts the owning node name and bare id from a job id of
// the form "{owner}-{bare_id}", preferring the longest matching known node
// name before falling back to the substring before the first hyphen. Ported
// from cluster/router.py's parse_job_owner.
func ParseJobOwner(jobID string, nodes map[string]string) (owner, bareID string, err error) {
	known := make([]string, 0, len(nodes))
	for n := range nodes {
		known = append(known, n)
	}
	sort.Slice(known, func(i, j int) bool { return len(known[i]) > len(known[j]) })

	for _, node := range known {
		prefix := node + "-"
		if strings.HasPrefix(jobID, prefix) {
			return node, jobID[len(prefix):], nil
		}
	}

	parts := strings.SplitN(jobID, "-", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid job_id format: %q", jobID)
	}
	return parts[0], parts[1], nil
}

// IsLocal reports whether jobID is owned by selfName.
func IsLocal(jobID, selfName string, nodes map[string]string) bool {
	owner, _, err := ParseJobOwner(jobID, nodes)
	if err != nil {
		return false
	}
	return owner == selfName
}

// ProxyResult is the verbatim response collected from an owner node, ready
// to be written back by the HTTP handler.
type ProxyResult struct {
	StatusCode  int
	Body        []byte
	ContentType string
}

// Router proxies owner-addressed requests to the node that owns them.
type Router struct {
	watcher *Watcher
	client  *http.Client
}

// NewRouter builds a Router sharing a single HTTP client across calls.
func NewRouter(watcher *Watcher) *Router {
	return &Router{watcher: watcher, client: &http.Client{}}
}

// ProxyToOwner forwards method/pathSuffix/query/body to jobID's owner node,
// injecting internal=1 so the proxied request never triggers further
// distribution. Returns apperrors.ErrPeerUnreachable (wrapped with the
// owner name) on connection failure or timeout, matching spec.md §4.4's
// 503 owner_node_unreachable contract.
func (r *Router) ProxyToOwner(ctx context.Context, jobID, pathSuffix, method string, query url.Values, body []byte, headers http.Header) (*ProxyResult, error) {
	cfg := r.watcher.Get()
	owner, _, err := ParseJobOwner(jobID, cfg.Nodes)
	if err != nil {
		return nil, apperrors.NewUploadError("invalid job id format")
	}

	baseURL := cfg.NodeURL(owner)
	if baseURL == "" {
		return nil, apperrors.NewPeerError(owner, fmt.Errorf("unknown node"))
	}

	targetURL := fmt.Sprintf("%s/jobs/%s%s", strings.TrimRight(baseURL, "/"), jobID, pathSuffix)

	params := url.Values{}
	for k, v := range query {
		params[k] = v
	}
	params.Set("internal", "1")

	timeout := time.Duration(cfg.InternalRequestTimeoutSeconds) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, method, targetURL+"?"+params.Encode(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building proxy request: %w", err)
	}
	for k, vs := range headers {
		lk := strings.ToLower(k)
		if lk == "host" || lk == "content-length" {
			continue
		}
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperrors.NewPeerError(owner, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewPeerError(owner, err)
	}

	return &ProxyResult{
		StatusCode:  resp.StatusCode,
		Body:        respBody,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// ProxySubmission forwards a new job upload to targetNode, appending
// internal=1 and an optional target_lang query param, used by the
// distribution loop in spec.md §4.4.
func (r *Router) ProxySubmission(ctx context.Context, targetNode string, body []byte, contentType, targetLang string) (*ProxyResult, error) {
	cfg := r.watcher.Get()
	baseURL := cfg.NodeURL(targetNode)
	if baseURL == "" {
		return nil, apperrors.NewPeerError(targetNode, fmt.Errorf("unknown node"))
	}

	params := url.Values{"internal": {"1"}}
	if targetLang != "" {
		params.Set("target_lang", targetLang)
	}
	targetURL := fmt.Sprintf("%s/jobs?%s", strings.TrimRight(baseURL, "/"), params.Encode())

	timeout := time.Duration(cfg.InternalRequestTimeoutSeconds) * time.Second
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, targetURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building submission proxy request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, apperrors.NewPeerError(targetNode, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewPeerError(targetNode, err)
	}

	return &ProxyResult{
		StatusCode:  resp.StatusCode,
		Body:        respBody,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}
