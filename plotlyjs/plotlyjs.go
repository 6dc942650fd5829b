// Package plotlyjs locates the Plotly.js runtime: an explicit file, a copy in
// the user cache directory, or a download from the Plotly CDN that is then
// written to the cache.
package plotlyjs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
)

// Version is the Plotly.js release used by default.
const Version = "2.35.2"

// EnvPath names an environment variable pointing at a local plotly.min.js. It
// takes precedence over the cache and the network.
const EnvPath = "PLOTLYJS_PATH"

// CDNURL returns the CDN location of the given Plotly.js release.
func CDNURL(version string) string {
	return "https://cdn.plot.ly/plotly-" + version + ".min.js"
}

// Default is the cache used when no other runtime source is configured.
var Default = &Cache{}

// Cache resolves the runtime once and keeps it in memory.
type Cache struct {
	// Version defaults to the package Version.
	Version string
	// Dir defaults to <user cache dir>/plotview.
	Dir string
	// URL defaults to CDNURL(Version).
	URL string
	// Client defaults to http.DefaultClient.
	Client *http.Client

	mu  sync.Mutex
	src string
}

// Source returns the runtime source code.
func (c *Cache) Source(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.src != "" {
		return c.src, nil
	}

	if p := os.Getenv(EnvPath); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return "", fmt.Errorf("plotlyjs: read %s: %w", EnvPath, err)
		}
		c.src = string(b)
		return c.src, nil
	}

	file, err := c.file()
	if err != nil {
		return "", err
	}
	if b, err := os.ReadFile(file); err == nil && len(b) > 0 {
		c.src = string(b)
		return c.src, nil
	}

	b, err := c.download(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return "", fmt.Errorf("plotlyjs: create cache dir: %w", err)
	}
	if err := os.WriteFile(file, b, 0o644); err != nil { //nolint:gosec
		return "", fmt.Errorf("plotlyjs: write cache: %w", err)
	}
	c.src = string(b)
	return c.src, nil
}

func (c *Cache) version() string {
	if c.Version == "" {
		return Version
	}
	return c.Version
}

func (c *Cache) file() (string, error) {
	dir := c.Dir
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("plotlyjs: locate cache dir: %w", err)
		}
		dir = filepath.Join(base, "plotview")
	}
	return filepath.Join(dir, "plotly-"+c.version()+".min.js"), nil
}

func (c *Cache) download(ctx context.Context) ([]byte, error) {
	url := c.URL
	if url == "" {
		url = CDNURL(c.version())
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("plotlyjs: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plotlyjs: download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("plotlyjs: download %s: unexpected status %s", url, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("plotlyjs: download %s: %w", url, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("plotlyjs: download %s: empty response", url)
	}
	return b, nil
}
