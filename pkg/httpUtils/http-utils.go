package http_utils

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/benmeehan/signage-agent/pkg/file"
)

// ErrWriteFile wraps failures writing the downloaded body to disk.
var ErrWriteFile = errors.New("failed to write downloaded file")

// DownloadFile streams the body of a GET to url into outputPath. The file is
// replaced atomically, so a failed download never leaves a partial file.
func DownloadFile(ctx context.Context, client *http.Client, url string, outputPath string, fileOps file.FileOperations) (int64, error) {
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download file from %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("failed to download file, received status code: %d", resp.StatusCode)
	}

	n, err := fileOps.WriteFromReader(outputPath, resp.Body)
	if err != nil {
		return 0, fmt.Errorf("%w %s: %v", ErrWriteFile, outputPath, err)
	}

	return n, nil
}
