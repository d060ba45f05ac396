// Package download wraps the yt-dlp binary for fetching source media into
// the uploads directory.
package download

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"clipflow/internal/config"
	"clipflow/internal/fileutil"
	"clipflow/internal/logging"
	"clipflow/internal/services"
)

var commandContext = exec.CommandContext

// Result describes a finished download.
type Result struct {
	Path     string
	InfoPath string
	Title    string
	Duration int
}

// Service invokes yt-dlp with the configured defaults.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	// randInt is injectable so trim-window tests are deterministic.
	randInt func(n int) int
}

// NewService builds a download service.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "download"),
		randInt: rand.Intn,
	}
}

type metadata struct {
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
}

// Fetch downloads url into the uploads directory and returns the artifact
// paths. Long sources are trimmed to a random window during postprocessing.
func (s *Service) Fetch(ctx context.Context, url string) (*Result, error) {
	meta, raw, err := s.probe(ctx, url)
	if err != nil {
		return nil, err
	}

	title := SanitizeFilename(meta.Title)
	if title == "" {
		title = "download"
	}
	outputPath, err := uniquePath(s.cfg.Paths.UploadsDir, title)
	if err != nil {
		return nil, services.Wrap(services.ErrDownload, "", "fetch", "choose output path", err)
	}
	infoPath := strings.TrimSuffix(outputPath, ".mp4") + ".info.json"
	if err := os.WriteFile(infoPath, raw, 0o644); err != nil {
		return nil, services.Wrap(services.ErrDownload, "", "fetch", "write info sidecar", err)
	}

	args := s.buildArgs(url, outputPath, int(meta.Duration))
	s.logger.Info("starting download",
		logging.String("url", url),
		logging.String("output", filepath.Base(outputPath)),
		logging.Int("duration_seconds", int(meta.Duration)))

	cmd := commandContext(ctx, s.cfg.Downloader.YtdlpPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		_ = fileutil.RemoveIfExists(outputPath)
		_ = fileutil.RemoveIfExists(infoPath)
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 512 {
			detail = detail[len(detail)-512:]
		}
		return nil, services.Wrap(services.ErrDownload, "", "fetch", detail, err)
	}

	return &Result{
		Path:     outputPath,
		InfoPath: infoPath,
		Title:    title,
		Duration: int(meta.Duration),
	}, nil
}

// RemoveArtifacts deletes the downloaded media and its sidecar.
func RemoveArtifacts(result *Result) error {
	if result == nil {
		return nil
	}
	if err := fileutil.RemoveIfExists(result.Path); err != nil {
		return err
	}
	return fileutil.RemoveIfExists(result.InfoPath)
}

func (s *Service) probe(ctx context.Context, url string) (*metadata, []byte, error) {
	args := []string{"--dump-json", "--no-playlist"}
	if s.cfg.Downloader.CookiesFile != "" {
		args = append(args, "--cookies", s.cfg.Downloader.CookiesFile)
	}
	args = append(args, url)

	cmd := commandContext(ctx, s.cfg.Downloader.YtdlpPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		return nil, nil, services.Wrap(services.ErrDownload, "", "probe", detail, err)
	}

	meta := &metadata{}
	raw := bytes.TrimSpace(stdout.Bytes())
	if err := json.Unmarshal(raw, meta); err != nil {
		return nil, nil, services.Wrap(services.ErrDownload, "", "probe", "parse metadata", err)
	}
	return meta, raw, nil
}

func (s *Service) buildArgs(url, outputPath string, durationSeconds int) []string {
	d := s.cfg.Downloader
	args := []string{
		"--format", "bestvideo+bestaudio/best",
		"--output", outputPath,
		"--no-playlist",
		"--ffmpeg-location", d.FfmpegPath,
		"--merge-output-format", "mp4",
		"--no-part",
		"--retries", strconv.Itoa(d.Retries),
		"--fragment-retries", strconv.Itoa(d.Retries),
	}

	if windowStart, windowLen, ok := s.trimWindow(durationSeconds); ok {
		args = append(args, "--postprocessor-args",
			fmt.Sprintf("ffmpeg:-ss %d -t %d -avoid_negative_ts make_zero -map 0:v:0? -map 0:a:0? -c:v copy -c:a aac", windowStart, windowLen))
	} else {
		args = append(args, "--postprocessor-args", "ffmpeg:-c:v copy -c:a aac -strict -2")
	}

	if d.CookiesFile != "" {
		args = append(args, "--cookies", d.CookiesFile)
	}
	return append(args, url)
}

// trimWindow picks a random excerpt for sources longer than the threshold so
// editor sessions are not fed multi-hour uploads.
func (s *Service) trimWindow(durationSeconds int) (start, length int, ok bool) {
	d := s.cfg.Downloader
	threshold := d.TrimThresholdMinutes * 60
	if durationSeconds <= threshold {
		return 0, 0, false
	}

	minLen := d.TrimMinMinutes * 60
	maxLen := d.TrimMaxMinutes * 60
	length = minLen
	if maxLen > minLen {
		length += s.randInt(maxLen - minLen + 1)
	}
	if length >= durationSeconds {
		length = durationSeconds - 1
	}

	maxStart := durationSeconds - length
	if maxStart > 0 {
		start = s.randInt(maxStart)
	}
	return start, length, true
}

var reWhitespace = regexp.MustCompile(`\s+`)

// SanitizeFilename strips characters that break filesystems or editor
// uploads and bounds the length.
func SanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r):
		case r < 0x20, r >= 0x80 && r <= 0x9f:
		case r >= 0xFE00 && r <= 0xFE0F: // variation selectors
		case r >= 0x200B && r <= 0x200D, r == 0xFEFF: // zero-width characters
		case r >= 0x2060 && r <= 0x2064:
		case r == 0x00AD: // soft hyphen
		default:
			b.WriteRune(r)
		}
	}
	out := strings.TrimPrefix(b.String(), ".")
	out = strings.TrimSuffix(out, ".")
	out = reWhitespace.ReplaceAllString(out, " ")
	out = strings.TrimSpace(out)
	if runes := []rune(out); len(runes) > 100 {
		out = strings.TrimSpace(string(runes[:100]))
	}
	return out
}

func uniquePath(dir, title string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	candidate := filepath.Join(dir, title+".mp4")
	for counter := 1; ; counter++ {
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d).mp4", title, counter))
	}
}
