package data

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const driveDownloadURL = "https://drive.google.com/uc?export=download&id="

// DirectDownloadURL turns a Drive sharing link such as
// https://drive.google.com/file/d/<id>/view?usp=sharing into a direct
// download URL. Other URLs are returned as they are.
func DirectDownloadURL(shareURL string) (string, error) {
	u, err := url.Parse(shareURL)
	if err != nil {
		return "", fmt.Errorf("%w: parse url: %v", ErrFetch, err)
	}
	if !strings.HasSuffix(u.Host, "drive.google.com") || !strings.Contains(u.Path, "/file/d/") {
		return shareURL, nil
	}

	parts := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	if len(parts) < 2 {
		return "", fmt.Errorf("%w: no file id in %q", ErrFetch, shareURL)
	}
	fileID := parts[len(parts)-2]
	if fileID == "" || fileID == "d" {
		return "", fmt.Errorf("%w: no file id in %q", ErrFetch, shareURL)
	}
	return driveDownloadURL + fileID, nil
}

type Loader struct {
	client *http.Client
	logger *zap.SugaredLogger
}

func NewLoader(timeout time.Duration, logger *zap.SugaredLogger) *Loader {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Loader{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Fetch downloads a CSV resource and parses it. There is no retry: any
// failure is returned wrapped in ErrFetch or ErrMalformedCSV.
func (l *Loader) Fetch(ctx context.Context, rawURL string) (*Table, error) {
	downloadURL, err := DirectDownloadURL(rawURL)
	if err != nil {
		return nil, err
	}
	l.logger.Infow("fetching dataset", "url", downloadURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFetch, err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("%w: status %d: %s", ErrFetch, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	table, err := ReadCSV(resp.Body)
	if err != nil {
		return nil, err
	}
	l.logger.Infow("dataset loaded", "rows", table.NumRows(), "columns", table.NumColumns())
	return table, nil
}

// Load reads from a local path when one is given, otherwise fetches url.
func (l *Loader) Load(ctx context.Context, path, rawURL string) (*Table, error) {
	if path != "" {
		l.logger.Infow("reading dataset", "path", path)
		table, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		l.logger.Infow("dataset loaded", "rows", table.NumRows(), "columns", table.NumColumns())
		return table, nil
	}
	if rawURL == "" {
		return nil, fmt.Errorf("%w: neither a path nor a url was configured", ErrFetch)
	}
	return l.Fetch(ctx, rawURL)
}
