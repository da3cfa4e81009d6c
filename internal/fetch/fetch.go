// Package fetch retrieves the published registrations archive to local
// storage. Any transport error is returned to the caller and treated as
// fatal; there is no retry.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/zeebo/xxh3"

	"lobbyetl/internal/httpds"
)

// Download GETs url and streams the body into a freshly allocated temporary
// file, returning its path. The caller is responsible for eventual deletion.
// The content size and xxh3 checksum are logged for operator verification.
func Download(ctx context.Context, client *httpds.Client, url string) (string, error) {
	resp, err := client.Get(ctx, url)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download: unexpected status %d from %s", resp.StatusCode, url)
	}

	tmp, err := os.CreateTemp("", "lobbyetl-*.zip")
	if err != nil {
		return "", fmt.Errorf("create temp archive: %w", err)
	}

	h := xxh3.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp archive: %w", err)
	}

	log.Printf("fetch: downloaded %d bytes to %s (xxh3=%016x)", n, tmp.Name(), h.Sum64())
	return tmp.Name(), nil
}
