package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	DefaultTimeout = 30 * time.Second
	maxPayload     = 256 << 20
)

// DirFetcher serves payloads from JSON files laid out as
// <dir>/<mode>/<kind>.json with <dir>/<kind>.json as the mode-independent
// fallback. Language variants live next to them as <kind>.<lang>.json.
type DirFetcher struct {
	Dir string
}

func (f DirFetcher) Fetch(ctx context.Context, req Request) ([]map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("unknown kind %q", req.Kind)
	}
	for _, path := range f.candidates(req) {
		raw, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		out, err := Decode(req.Kind, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: no payload file under %s", req, f.Dir)
}

func (f DirFetcher) candidates(req Request) []string {
	names := []string{string(req.Kind) + ".json"}
	if req.Lang != "" {
		names = append([]string{fmt.Sprintf("%s.%s.json", req.Kind, req.Lang)}, names...)
	}
	var out []string
	if req.Mode != "" {
		for _, n := range names {
			out = append(out, filepath.Join(f.Dir, req.Mode, n))
		}
	}
	for _, n := range names {
		out = append(out, filepath.Join(f.Dir, n))
	}
	return out
}

// HTTPFetcher posts one GraphQL query per payload kind.
type HTTPFetcher struct {
	Endpoint string
	Client   *http.Client
	Timeout  time.Duration
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

func (f HTTPFetcher) Fetch(ctx context.Context, req Request) ([]map[string]any, error) {
	q, ok := queries[req.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", req.Kind)
	}
	timeout := f.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	vars := map[string]any{}
	if req.Lang != "" {
		vars["lang"] = req.Lang
	}
	if req.Mode != "" {
		vars["gameMode"] = req.Mode
	}
	body, err := json.Marshal(graphQLRequest{Query: q, Variables: vars})
	if err != nil {
		return nil, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	hreq.Header.Set("Content-Type", "application/json")
	hreq.Header.Set("Accept", "application/json")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(hreq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxPayload))
	if err != nil {
		return nil, fmt.Errorf("%s: read body: %w", req, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: upstream status %d: %s", req, resp.StatusCode, snippet(raw))
	}
	return Decode(req.Kind, raw)
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
