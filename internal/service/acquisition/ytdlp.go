package acquisition

import (
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"path/filepath"
	"strings"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/service/common"
)

// Metadata is the subset of yt-dlp's --dump-single-json output stored for a media item
type Metadata struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Uploader     string   `json:"uploader"`
	Channel      string   `json:"channel"`
	Duration     *float64 `json:"duration"`
	ViewCount    *int64   `json:"view_count"`
	LikeCount    *int64   `json:"like_count"`
	CommentCount *int64   `json:"comment_count"`
	RepostCount  *int64   `json:"repost_count"`
}

// YtDlp wraps the yt-dlp command line
type YtDlp struct {
	runner common.CmdRunner
	bin    string
}

// NewYtDlp creates a YtDlp using bin, or "yt-dlp" when bin is empty
func NewYtDlp(runner common.CmdRunner, bin string) *YtDlp {
	if bin == "" {
		bin = "yt-dlp"
	}
	return &YtDlp{runner: runner, bin: bin}
}

// ListVideoURLs returns the video page URLs of a profile in listing order
func (y *YtDlp) ListVideoURLs(ctx context.Context, profileURL string) ([]string, error) {
	out, err := y.runner.Run(ctx, y.bin, "--flat-playlist", "--print", "%(webpage_url)s", profileURL)
	if err != nil {
		return nil, formatYtDlpError(err, "failed to list profile videos")
	}

	var urls []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.Contains(line, "/video/") {
			continue
		}
		urls = append(urls, line)
	}
	return urls, nil
}

// Metadata fetches metadata for a single video without downloading it
func (y *YtDlp) Metadata(ctx context.Context, url string) (*Metadata, error) {
	out, err := y.runner.Run(ctx, y.bin, "--dump-single-json", "--skip-download", url)
	if err != nil {
		return nil, formatYtDlpError(err, "failed to fetch metadata")
	}

	var meta Metadata
	if err := json.Unmarshal(out, &meta); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeExternal, "failed to parse yt-dlp metadata")
	}
	if meta.ID == "" {
		return nil, apperrors.New(apperrors.CodeExternal, "yt-dlp metadata has no id")
	}
	return &meta, nil
}

// Download saves the video into dir as <id>.<ext>. An empty format lets yt-dlp choose.
func (y *YtDlp) Download(ctx context.Context, url, dir, format string) error {
	var args []string
	if format != "" {
		args = append(args, "-f", format)
	}
	args = append(args,
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
		"--no-write-subs",
		"--no-warnings",
		url,
	)

	if _, err := y.runner.Run(ctx, y.bin, args...); err != nil {
		return formatYtDlpError(err, "failed to download video")
	}
	return nil
}

var ytDlpErrorPatterns = []struct {
	match   []string
	message string
	code    string
}{
	{[]string{"http error 429", "too many requests"}, "rate limited by the platform (HTTP 429)", apperrors.CodeTransient},
	{[]string{"private video", "this video is private"}, "video is private", apperrors.CodePermanentItem},
	{[]string{"has been removed", "video was removed"}, "video has been removed", apperrors.CodePermanentItem},
	{[]string{"video unavailable", "is not available", "unavailable"}, "video is unavailable", apperrors.CodePermanentItem},
	{[]string{"http error 404"}, "video not found (HTTP 404)", apperrors.CodePermanentItem},
	{[]string{"http error 403"}, "access forbidden (HTTP 403)", apperrors.CodeExternal},
}

// formatYtDlpError turns a failed yt-dlp invocation into a readable AppError
func formatYtDlpError(err error, operation string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, exec.ErrNotFound) {
		return apperrors.Wrap(err, apperrors.CodeFatalConfig, "yt-dlp binary not found, install it or set YTDLP_BIN")
	}

	detail := err.Error()
	var cmdErr *common.CommandError
	if errors.As(err, &cmdErr) && cmdErr.Stderr != "" {
		detail = cmdErr.Stderr
	}
	lower := strings.ToLower(detail)

	for _, p := range ytDlpErrorPatterns {
		for _, m := range p.match {
			if strings.Contains(lower, m) {
				return apperrors.Wrap(err, p.code, operation+": "+p.message)
			}
		}
	}
	return apperrors.Wrap(err, apperrors.CodeExternal, operation+": "+lastLine(detail))
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
