package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/reelgrab/reelgrab/internal/media"
	"github.com/reelgrab/reelgrab/pkg/logger"
)

var log = logger.Get("Extractor")

const progressInterval = time.Millisecond * 500

// Config controls the behaviour of the yt-dlp backed extractor. The
// user-agent override and TLS verification toggle exist because some
// sources reject the default client outright; they are quirks this
// package owns so that callers never need to.
type Config struct {
	MediaDirPath        string `toml:"media_dir" env:"MEDIA_DIR" env-default:"./static/videos"`
	Format              string `toml:"format" env:"EXTRACTOR_FORMAT" env-default:"best"`
	UserAgent           string `toml:"user_agent" env:"EXTRACTOR_USER_AGENT"`
	SkipTLSVerification bool   `toml:"skip_tls_verification" env:"EXTRACTOR_SKIP_TLS_VERIFY" env-default:"false"`
}

// YtdlpExtractor resolves media URLs using the yt-dlp binary via the
// go-ytdlp bindings. It satisfies the Extractor interface.
type YtdlpExtractor struct {
	config Config
}

// NewYtdlpExtractor constructs the extractor, ensuring the configured
// media directory exists so FetchArtifact resolutions have somewhere
// to land.
func NewYtdlpExtractor(config Config) (*YtdlpExtractor, error) {
	if err := os.MkdirAll(config.MediaDirPath, os.ModeDir|os.ModePerm); err != nil {
		return nil, fmt.Errorf("media directory '%s' could not be created: %w", config.MediaDirPath, err)
	}

	return &YtdlpExtractor{config: config}, nil
}

// Resolve implements Extractor. Both modes begin with a metadata probe;
// FetchArtifact then downloads the media to a deterministic local path
// and verifies the artifact actually landed.
func (ex *YtdlpExtractor) Resolve(ctx context.Context, url string, mode Mode, sink ProgressSink) (*media.MediaRecord, error) {
	info, err := ex.probe(ctx, url)
	if err != nil {
		return nil, err
	}

	record := recordFromInfo(info, url)
	if record.ID == "" || record.Title == "" {
		return nil, newExtractionError("source reported no usable metadata")
	}

	switch mode {
	case MetadataOnly:
		directURL := directAccessURL(info)
		if directURL == "" {
			return nil, newExtractionError("no direct download link available for this media")
		}
		record.ArtifactRef = directURL
		return record, nil

	case FetchArtifact:
		path, err := ex.fetch(ctx, url, info, sink)
		if err != nil {
			return nil, err
		}
		record.ArtifactRef = path
		if stat, err := os.Stat(path); err == nil {
			record.Size = stat.Size()
		}
		return record, nil
	}

	return nil, newExtractionError("unknown resolution mode %d", mode)
}

// probe fetches the source metadata without writing any bytes locally.
func (ex *YtdlpExtractor) probe(ctx context.Context, url string) (*ytdlp.ExtractedInfo, error) {
	dl := ex.newCommand().
		SkipDownload().
		DumpJSON()

	result, err := dl.Run(ctx, url)
	if err != nil {
		return nil, ex.wrapRunError(ctx, "failed to fetch media information", err)
	}

	infos, err := result.GetExtractedInfo()
	if err != nil || len(infos) == 0 {
		return nil, newExtractionError("source yielded no media information")
	}

	return infos[0], nil
}

// fetch downloads the media bytes for the probed source, reporting
// retrieval progress on the sink as it goes.
func (ex *YtdlpExtractor) fetch(ctx context.Context, url string, info *ytdlp.ExtractedInfo, sink ProgressSink) (string, error) {
	ext := info.Extension
	if ext == "" {
		ext = "mp4"
	}
	path := uniqueArtifactPath(ex.config.MediaDirPath, stringOr(info.Title, "untitled"), stringOr(info.Uploader, media.UnknownAuthor), ext)

	dl := ex.newCommand().Output(path)
	if sink != nil {
		dl.ProgressFunc(progressInterval, func(update ytdlp.ProgressUpdate) {
			sink(progressFromUpdate(update))
		})
	}

	log.Emit(logger.NEW, "Downloading '%s' to %s\n", url, path)
	if _, err := dl.Run(ctx, url); err != nil {
		return "", ex.wrapRunError(ctx, "download failed", err)
	}

	// yt-dlp exiting zero without the expected file on disk counts as
	// a failed extraction, not a success with a dangling reference.
	if _, err := os.Stat(path); err != nil {
		return "", newExtractionError("download completed but produced no artifact")
	}

	return path, nil
}

// newCommand builds the shared yt-dlp invocation with the
// source-specific quirks this deployment is configured for.
func (ex *YtdlpExtractor) newCommand() *ytdlp.Command {
	dl := ytdlp.New().
		Format(ex.config.Format).
		RestrictFilenames().
		NoWarnings()

	if ex.config.UserAgent != "" {
		dl = dl.UserAgent(ex.config.UserAgent)
	}
	if ex.config.SkipTLSVerification {
		dl = dl.NoCheckCertificates()
	}

	return dl
}

// wrapRunError maps a yt-dlp invocation failure on to the opaque error
// surface callers expect. Cancellation is passed through untouched so
// the session can distinguish a dropped client from a broken source.
func (ex *YtdlpExtractor) wrapRunError(ctx context.Context, label string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return newExtractionError("timeout")
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}

	log.Emit(logger.ERROR, "yt-dlp invocation failed: %v\n", err)
	return newExtractionError("%s: %v", label, err)
}

// recordFromInfo maps the probed metadata on to a MediaRecord,
// applying the documented defaults for absent fields. CreatedAt is
// deliberately left zero; finalisation timestamps belong to the
// session coordinator.
func recordFromInfo(info *ytdlp.ExtractedInfo, sourceURL string) *media.MediaRecord {
	record := &media.MediaRecord{
		ID:        info.ID,
		Title:     stringOr(info.Title, ""),
		Author:    stringOr(info.Uploader, media.UnknownAuthor),
		SourceURL: sourceURL,
	}

	if info.Duration != nil && *info.Duration > 0 {
		record.Duration = int(*info.Duration)
	}

	// FileSize and friends are promoted from an embedded format which
	// the probe does not always populate.
	if info.ExtractedFormat != nil {
		if info.FileSize != nil && *info.FileSize > 0 {
			record.Size = int64(*info.FileSize)
		} else if info.FileSizeApprox != nil && *info.FileSizeApprox > 0 {
			record.Size = int64(*info.FileSizeApprox)
		}
	}

	return record
}

// directAccessURL prefers the URL of the format entry matching the
// chosen format ID, falling back to the top-level URL if the source
// reports one directly.
func directAccessURL(info *ytdlp.ExtractedInfo) string {
	if info.ExtractedFormat != nil && info.FormatID != nil {
		for _, format := range info.Formats {
			if format == nil || format.FormatID == nil || format.URL == "" {
				continue
			}
			if *format.FormatID == *info.FormatID {
				return format.URL
			}
		}
	}

	return stringOr(info.URL, "")
}

func progressFromUpdate(update ytdlp.ProgressUpdate) Progress {
	progress := Progress{Finished: update.Status == ytdlp.ProgressStatusFinished}

	if update.TotalBytes > 0 {
		progress.Percentage = float64(update.DownloadedBytes) / float64(update.TotalBytes) * 100
	}

	if !update.Started.IsZero() {
		if elapsed := time.Since(update.Started); elapsed.Seconds() > 0 {
			bytesPerSecond := float64(update.DownloadedBytes) / elapsed.Seconds()
			progress.Speed = fmt.Sprintf("%.1fMB/s", bytesPerSecond/1024/1024)
		}
	}

	if eta := update.ETA(); eta > 0 {
		progress.Eta = formatEta(eta)
	}

	return progress
}

func formatEta(eta time.Duration) string {
	total := int(eta.Seconds())
	if total >= 3600 {
		return fmt.Sprintf("%02d:%02d:%02d", total/3600, (total%3600)/60, total%60)
	}
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func stringOr(value *string, fallback string) string {
	if value != nil && *value != "" {
		return *value
	}
	return fallback
}
