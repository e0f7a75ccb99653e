package elevation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"

	"github.com/golang/glog"
	"github.com/spf13/afero"

	"github.com/ecopia-map/geofuse/internal/errs"
)

// errKeyNotFound reports a key absent from a store. Missing chunks are legal in zarr
// and read as the fill value.
var errKeyNotFound = errors.New("zarr key not found")

// Store is a key/value view of a zarr hierarchy.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// HTTPStore reads a zarr hierarchy published over HTTP(S) with basic authentication.
type HTTPStore struct {
	baseURL  string
	user     string
	password string
	client   *http.Client
}

// NewHTTPStore builds a store rooted at baseURL. An empty user disables authentication.
func NewHTTPStore(baseURL, user, password string, client *http.Client) *HTTPStore {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPStore{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		user:     user,
		password: password,
		client:   client,
	}
}

func (s *HTTPStore) Get(ctx context.Context, key string) ([]byte, error) {
	url := s.baseURL + "/" + key
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.IO(err, "elevation: build request for %s", key)
	}
	if s.user != "" {
		req.SetBasicAuth(s.user, s.password)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errs.IO(err, "elevation: fetch %s", key)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errs.Auth(nil, "elevation: store rejected credentials for %s (status %d)", key, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", key, errKeyNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errs.IO(nil, "elevation: fetch %s: status %d", key, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.IO(err, "elevation: read %s", key)
	}
	glog.V(2).Infof("elevation: fetched %s (%d bytes)", key, len(body))
	return body, nil
}

// FsStore reads a zarr hierarchy from a directory of an afero filesystem.
type FsStore struct {
	fs   afero.Fs
	root string
}

func NewFsStore(fs afero.Fs, root string) *FsStore {
	return &FsStore{fs: fs, root: root}
}

func (s *FsStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, errs.IO(err, "elevation: read %s", key)
	}
	data, err := afero.ReadFile(s.fs, path.Join(s.root, key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, errKeyNotFound)
		}
		return nil, errs.IO(err, "elevation: read %s", key)
	}
	return data, nil
}
