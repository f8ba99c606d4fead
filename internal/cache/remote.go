package cache

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
)

// RemoteBackend is the pluggable remote-cache transport spec.md §9 leaves
// as an open question. SharedCache talks to it only through this
// interface, so a production deployment can swap in whatever object
// store or artifact service it already runs without touching the local
// on-disk cache logic.
type RemoteBackend interface {
	// Fetch returns the raw manifest+payload bytes for key, or ok=false on
	// a remote miss.
	Fetch(key string) (data []byte, ok bool, err error)
	// Put uploads the raw manifest+payload bytes for key.
	Put(key string, data []byte) error
}

// HTTPRemoteBackend is a minimal REST-shaped RemoteBackend: GET
// {baseURL}/{key} to fetch, PUT {baseURL}/{key} to store. It exists to
// prove the interface out end-to-end, not as a finished production
// transport - see spec.md §9.
type HTTPRemoteBackend struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewHTTPRemoteBackend builds a RemoteBackend backed by retryablehttp,
// which retries idempotent requests against transient network/5xx
// failures automatically.
func NewHTTPRemoteBackend(baseURL string) *HTTPRemoteBackend {
	client := retryablehttp.NewClient()
	client.Logger = nil
	return &HTTPRemoteBackend{baseURL: baseURL, client: client}
}

// Fetch implements RemoteBackend.
func (b *HTTPRemoteBackend) Fetch(key string) ([]byte, bool, error) {
	resp, err := b.client.Get(fmt.Sprintf("%s/%s", b.baseURL, key))
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("remote cache fetch %s: unexpected status %d", key, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put implements RemoteBackend.
func (b *HTTPRemoteBackend) Put(key string, data []byte) error {
	req, err := retryablehttp.NewRequest(http.MethodPut, fmt.Sprintf("%s/%s", b.baseURL, key), bytes.NewReader(data))
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("remote cache put %s: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}
