// Package netx fetches linked files through their presigned URLs.
package netx

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// HTTPClient is replaced in tests.
var HTTPClient = &http.Client{}

// Fetch downloads url into memory.
func Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("download failed: %s; body: %s", resp.Status, string(b))
	}
	return io.ReadAll(resp.Body)
}

// FetchToFile downloads url into path, replacing it if it exists.
func FetchToFile(ctx context.Context, url, path string) error {
	data, err := Fetch(ctx, url)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
