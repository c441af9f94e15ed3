package acquisition

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/service/common"
)

// mockCmdRunner for testing
type mockCmdRunner struct {
	mock.Mock
}

func (m *mockCmdRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	arguments := m.Called(ctx, name, args)
	if arguments.Get(0) == nil {
		return nil, arguments.Error(1)
	}
	return arguments.Get(0).([]byte), arguments.Error(1)
}

func exitErr(stderr string) error {
	return &common.CommandError{Name: "yt-dlp", ExitCode: 1, Stderr: stderr, Err: errors.New("exit status 1")}
}

func TestYtDlp_ListVideoURLs(t *testing.T) {
	runner := &mockCmdRunner{}
	out := "https://www.tiktok.com/@stew/video/1\n\n  https://www.tiktok.com/@stew/video/2  \nhttps://www.tiktok.com/@stew/photo/3\n"
	runner.On("Run", mock.Anything, "yt-dlp", []string{"--flat-playlist", "--print", "%(webpage_url)s", "https://www.tiktok.com/@stew"}).
		Return([]byte(out), nil)

	urls, err := NewYtDlp(runner, "").ListVideoURLs(context.Background(), "https://www.tiktok.com/@stew")

	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.tiktok.com/@stew/video/1", "https://www.tiktok.com/@stew/video/2"}, urls)
	runner.AssertExpectations(t)
}

func TestYtDlp_Metadata(t *testing.T) {
	t.Run("parses json", func(t *testing.T) {
		runner := &mockCmdRunner{}
		runner.On("Run", mock.Anything, "/opt/yt-dlp", []string{"--dump-single-json", "--skip-download", "https://x/video/7"}).
			Return([]byte(`{"id":"7","title":"Day 7","uploader":"stewman","duration":31.6,"view_count":1200,"like_count":0}`), nil)

		meta, err := NewYtDlp(runner, "/opt/yt-dlp").Metadata(context.Background(), "https://x/video/7")

		require.NoError(t, err)
		assert.Equal(t, "7", meta.ID)
		assert.Equal(t, "Day 7", meta.Title)
		assert.Equal(t, 31.6, *meta.Duration)
		assert.Equal(t, int64(1200), *meta.ViewCount)
		assert.Nil(t, meta.CommentCount)
	})

	t.Run("missing id", func(t *testing.T) {
		runner := &mockCmdRunner{}
		runner.On("Run", mock.Anything, "yt-dlp", mock.Anything).Return([]byte(`{"title":"x"}`), nil)

		_, err := NewYtDlp(runner, "").Metadata(context.Background(), "https://x/video/7")
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeExternal))
	})

	t.Run("invalid json", func(t *testing.T) {
		runner := &mockCmdRunner{}
		runner.On("Run", mock.Anything, "yt-dlp", mock.Anything).Return([]byte(`WARNING: not json`), nil)

		_, err := NewYtDlp(runner, "").Metadata(context.Background(), "https://x/video/7")
		assert.Error(t, err)
	})
}

func TestYtDlp_DownloadArgs(t *testing.T) {
	tests := []struct {
		name   string
		format string
		want   []string
	}{
		{
			name:   "with format",
			format: "best",
			want:   []string{"-f", "best", "-o", "/tmp/dl/%(id)s.%(ext)s", "--no-write-subs", "--no-warnings", "https://x/video/1"},
		},
		{
			name: "fallback without format",
			want: []string{"-o", "/tmp/dl/%(id)s.%(ext)s", "--no-write-subs", "--no-warnings", "https://x/video/1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockCmdRunner{}
			runner.On("Run", mock.Anything, "yt-dlp", tt.want).Return([]byte{}, nil)

			err := NewYtDlp(runner, "").Download(context.Background(), "https://x/video/1", "/tmp/dl", tt.format)

			require.NoError(t, err)
			runner.AssertExpectations(t)
		})
	}
}

func TestFormatYtDlpError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantMsg  string
	}{
		{"rate limited", exitErr("ERROR: HTTP Error 429: Too Many Requests"), apperrors.CodeTransient, "HTTP 429"},
		{"private", exitErr("ERROR: [TikTok] 123: This video is private"), apperrors.CodePermanentItem, "private"},
		{"removed", exitErr("ERROR: Video has been removed"), apperrors.CodePermanentItem, "removed"},
		{"unavailable", exitErr("ERROR: Video unavailable"), apperrors.CodePermanentItem, "unavailable"},
		{"not found", exitErr("ERROR: HTTP Error 404: Not Found"), apperrors.CodePermanentItem, "HTTP 404"},
		{"forbidden", exitErr("ERROR: HTTP Error 403: Forbidden"), apperrors.CodeExternal, "HTTP 403"},
		{"unknown keeps last line", exitErr("WARNING: something\nERROR: weird failure"), apperrors.CodeExternal, "ERROR: weird failure"},
		{"missing binary", &common.CommandError{Name: "yt-dlp", ExitCode: -1, Err: exec.ErrNotFound}, apperrors.CodeFatalConfig, "YTDLP_BIN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := formatYtDlpError(tt.err, "failed to download video")
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
			assert.ErrorIs(t, err, tt.err)
		})
	}

	assert.Equal(t, context.Canceled, formatYtDlpError(context.Canceled, "x"))
}
