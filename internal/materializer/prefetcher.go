package materializer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"path/filepath"

	"github.com/benmeehan/signage-agent/internal/models"
	"github.com/benmeehan/signage-agent/pkg/file"
	http_utils "github.com/benmeehan/signage-agent/pkg/httpUtils"
	"github.com/benmeehan/signage-agent/pkg/s3"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/rs/zerolog"
)

// errLocalFile marks failures on the local media directory rather than the source.
var errLocalFile = errors.New("local media file error")

// MediaFile is a prefetched copy of a content item's media.
type MediaFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Prefetcher validates each item and downloads its media into a local directory.
// Items whose media cannot be fetched are kept unindexed; the renderer falls back
// to the remote URL. The media index is only updated once the pass completes.
type Prefetcher struct {
	validator   *Validator
	mediaDir    string
	httpClient  *http.Client
	objectStore s3.ObjectStorageClient
	fileOps     file.FileOperations
	logger      zerolog.Logger

	index cmap.ConcurrentMap[string, MediaFile]
}

// NewPrefetcher creates a Prefetcher. objectStore may be nil when no s3:// media is expected.
func NewPrefetcher(validator *Validator, mediaDir string, httpClient *http.Client,
	objectStore s3.ObjectStorageClient, fileOps file.FileOperations, logger zerolog.Logger) *Prefetcher {

	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Prefetcher{
		validator:   validator,
		mediaDir:    mediaDir,
		httpClient:  httpClient,
		objectStore: objectStore,
		fileOps:     fileOps,
		logger:      logger,
		index:       cmap.New[MediaFile](),
	}
}

// Materialize validates every item and downloads the media not already held
// locally. Only cancellation or a local file error fails the pass.
func (p *Prefetcher) Materialize(ctx context.Context, candidate models.Snapshot, onProgress ProgressFunc) (models.Snapshot, error) {
	staged := make(map[string]MediaFile, len(candidate))
	failed := 0

	snapshot, err := p.validator.run(ctx, candidate, onProgress, func(ctx context.Context, index int, item models.ContentItem) error {
		if item.MediaURL == "" {
			return nil
		}
		if _, ok := staged[item.MediaURL]; ok {
			return nil
		}
		if media, ok := p.cached(item.MediaURL); ok {
			staged[item.MediaURL] = media
			return nil
		}

		media, err := p.fetch(ctx, item.MediaURL)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, errLocalFile) {
				return err
			}
			failed++
			p.logger.Warn().Err(err).Int("index", index).Str("media_url", item.MediaURL).
				Msg("Failed to fetch media, item kept without a local copy")
			return nil
		}
		staged[item.MediaURL] = media
		return nil
	})
	if err != nil {
		return nil, err
	}

	p.index.MSet(staged)
	removed := p.prune(staged)
	p.logger.Info().Int("files", len(staged)).Int("failed", failed).Int("removed", removed).
		Str("media_dir", p.mediaDir).Msg("Media prefetched")
	return snapshot, nil
}

// LocalFile returns the prefetched copy of mediaURL.
func (p *Prefetcher) LocalFile(mediaURL string) (MediaFile, bool) {
	return p.index.Get(mediaURL)
}

// cached returns the indexed copy of mediaURL if its file is still on disk.
func (p *Prefetcher) cached(mediaURL string) (MediaFile, bool) {
	media, ok := p.index.Get(mediaURL)
	if !ok {
		return MediaFile{}, false
	}
	exists, err := p.fileOps.IsFileExists(media.Path)
	if err != nil || !exists {
		return MediaFile{}, false
	}
	return media, true
}

// prune drops index entries, and their files, that the current pass did not keep.
func (p *Prefetcher) prune(keep map[string]MediaFile) int {
	removed := 0
	for _, mediaURL := range p.index.Keys() {
		if _, ok := keep[mediaURL]; ok {
			continue
		}
		media, ok := p.index.Pop(mediaURL)
		if !ok {
			continue
		}
		if err := p.fileOps.RemoveFile(media.Path); err != nil {
			p.logger.Warn().Err(err).Str("path", media.Path).Msg("Failed to remove stale media file")
		}
		removed++
	}
	return removed
}

func (p *Prefetcher) fetch(ctx context.Context, mediaURL string) (MediaFile, error) {
	u, err := url.Parse(mediaURL)
	if err != nil {
		return MediaFile{}, fmt.Errorf("invalid media url %q: %w", mediaURL, err)
	}

	target := filepath.Join(p.mediaDir, localName(mediaURL, u.Path))

	var size int64
	switch u.Scheme {
	case "http", "https":
		size, err = http_utils.DownloadFile(ctx, p.httpClient, mediaURL, target, p.fileOps)
		if errors.Is(err, http_utils.ErrWriteFile) {
			err = fmt.Errorf("%w: %v", errLocalFile, err)
		}
	case s3.Scheme:
		if p.objectStore == nil {
			return MediaFile{}, fmt.Errorf("no object storage configured for %s", mediaURL)
		}
		bucket, object, perr := s3.ParseURI(mediaURL)
		if perr != nil {
			return MediaFile{}, perr
		}
		size, err = p.objectStore.DownloadObject(ctx, bucket, object, target)
	default:
		return MediaFile{}, fmt.Errorf("unsupported media url scheme %q", u.Scheme)
	}
	if err != nil {
		return MediaFile{}, err
	}

	hash, err := p.fileOps.GetFileHash(target)
	if err != nil {
		return MediaFile{}, fmt.Errorf("%w: %v", errLocalFile, err)
	}

	p.logger.Debug().Str("media_url", mediaURL).Str("path", target).Int64("size", size).Msg("Media file fetched")
	return MediaFile{Path: target, SHA256: hash, Size: size}, nil
}

// localName derives a stable file name from the media URL, keeping the extension.
func localName(mediaURL, urlPath string) string {
	sum := sha256.Sum256([]byte(mediaURL))
	return hex.EncodeToString(sum[:12]) + path.Ext(urlPath)
}
