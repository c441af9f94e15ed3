package acquisition

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wiktor-jurek/stewthius/internal/config"
	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/model"
)

// mockMediaRepository for testing
type mockMediaRepository struct {
	mock.Mock
}

func (m *mockMediaRepository) ListSourceURLs(ctx context.Context) (map[string]struct{}, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]struct{}), args.Error(1)
}

func (m *mockMediaRepository) Create(ctx context.Context, item *model.MediaItem) (bool, error) {
	args := m.Called(ctx, item)
	return args.Bool(0), args.Error(1)
}

func (m *mockMediaRepository) SelectForAnalysis(ctx context.Context, sel model.AnalysisSelection) ([]*model.MediaItem, error) {
	args := m.Called(ctx, sel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.MediaItem), args.Error(1)
}

func (m *mockMediaRepository) GetByExternalID(ctx context.Context, externalID string) (*model.MediaItem, error) {
	args := m.Called(ctx, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MediaItem), args.Error(1)
}

func (m *mockMediaRepository) SetStatus(ctx context.Context, id int64, status model.ProcessingStatus, isAboutStew *bool) error {
	args := m.Called(ctx, id, status, isAboutStew)
	return args.Error(0)
}

// mockStore for testing
type mockStore struct {
	mock.Mock
}

func (m *mockStore) Put(ctx context.Context, key string, data []byte) (string, error) {
	args := m.Called(ctx, key, data)
	return args.String(0), args.Error(1)
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// scriptedRunner answers yt-dlp invocations from per-URL scripts
type scriptedRunner struct {
	list     []string
	metadata map[string]func(attempt int) ([]byte, error)
	download func(url, dir, format string) error

	metadataCalls map[string]int
	formats       []string
}

func (r *scriptedRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	url := args[len(args)-1]
	switch {
	case args[0] == "--flat-playlist":
		out := ""
		for _, u := range r.list {
			out += u + "\n"
		}
		return []byte(out), nil
	case args[0] == "--dump-single-json":
		if r.metadataCalls == nil {
			r.metadataCalls = map[string]int{}
		}
		r.metadataCalls[url]++
		return r.metadata[url](r.metadataCalls[url])
	default:
		var dir, format string
		for i := 0; i < len(args)-1; i++ {
			switch args[i] {
			case "-o":
				dir = filepath.Dir(args[i+1])
			case "-f":
				format = args[i+1]
			}
		}
		r.formats = append(r.formats, format)
		return nil, r.download(url, dir, format)
	}
}

func metaFor(id string) func(int) ([]byte, error) {
	return func(int) ([]byte, error) {
		return []byte(`{"id":"` + id + `","title":"Day ` + id + `","channel":"stew","duration":12.5,"view_count":10,"repost_count":0}`), nil
	}
}

func writeVideo(ext string) func(url, dir, format string) error {
	return func(url, dir, _ string) error {
		id := filepath.Base(url)
		if err := os.WriteFile(filepath.Join(dir, id+".info.json"), []byte("{}"), 0600); err != nil {
			return err
		}
		return os.WriteFile(filepath.Join(dir, id+"."+ext), []byte("video-"+id), 0600)
	}
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func testConfig() config.AcquisitionConfig {
	cfg := config.Default().Acquisition
	cfg.ProfileURL = "https://www.tiktok.com/@stew"
	cfg.MaxRetries = 0
	cfg.BaseDelay = 10 * time.Millisecond
	cfg.Cooldown = time.Minute
	cfg.ConsecutiveFailThreshold = 2
	return cfg
}

func newTestService(t *testing.T, runner *scriptedRunner, store *mockStore, repo *mockMediaRepository, cfg config.AcquisitionConfig) (*Service, *sleepRecorder) {
	t.Helper()
	svc := NewService(runner, store, repo, cfg, zap.NewNop())
	sleeper := &sleepRecorder{}
	svc.sleep = sleeper.sleep
	svc.rnd = func() float64 { return 0 }
	svc.tempRoot = t.TempDir()
	return svc, sleeper
}

func TestService_Run_SkipsExistingAndAppliesLimit(t *testing.T) {
	runner := &scriptedRunner{
		list: []string{"https://x/video/a", "https://x/video/b", "https://x/video/c"},
		metadata: map[string]func(int) ([]byte, error){
			"https://x/video/b": metaFor("b"),
		},
		download: writeVideo("mp4"),
	}
	store := &mockStore{}
	repo := &mockMediaRepository{}
	repo.On("ListSourceURLs", mock.Anything).Return(map[string]struct{}{"https://x/video/a": {}}, nil)
	store.On("Put", mock.Anything, "b.mp4", []byte("video-b")).Return("b.mp4", nil)
	repo.On("Create", mock.Anything, mock.MatchedBy(func(item *model.MediaItem) bool {
		return item.ExternalID == "b" &&
			item.SourceURL == "https://x/video/b" &&
			*item.StorageKey == "b.mp4" &&
			*item.Author == "stew" &&
			*item.Duration == 13 &&
			item.ShareCount == nil &&
			item.FileSize == int64(len("video-b")) &&
			item.Status == model.StatusUnprocessed
	})).Return(true, nil)

	svc, sleeper := newTestService(t, runner, store, repo, testConfig())
	result, err := svc.Run(context.Background(), Options{MaxDownloads: 1})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Discovered)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Success)
	assert.Zero(t, result.Failed)
	assert.NotEmpty(t, result.RunID)
	assert.Empty(t, sleeper.waits, "no pacing after the last item")
	assert.Equal(t, []string{config.DefaultYtDlpFormat}, runner.formats)
	repo.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestService_Run_FallsBackToDefaultFormat(t *testing.T) {
	runner := &scriptedRunner{
		list:     []string{"https://x/video/f"},
		metadata: map[string]func(int) ([]byte, error){"https://x/video/f": metaFor("f")},
		download: func(url, dir, format string) error {
			if format != "" {
				return exitErr("ERROR: Requested format is not available")
			}
			return writeVideo("webm")(url, dir, format)
		},
	}
	store := &mockStore{}
	repo := &mockMediaRepository{}
	repo.On("ListSourceURLs", mock.Anything).Return(map[string]struct{}{}, nil)
	store.On("Put", mock.Anything, "f.webm", mock.Anything).Return("f.webm", nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(true, nil)

	svc, _ := newTestService(t, runner, store, repo, testConfig())
	result, err := svc.Run(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, []string{config.DefaultYtDlpFormat, ""}, runner.formats)
}

func TestService_Run_RetriesTransientMetadataFailure(t *testing.T) {
	runner := &scriptedRunner{
		list: []string{"https://x/video/r"},
		metadata: map[string]func(int) ([]byte, error){
			"https://x/video/r": func(attempt int) ([]byte, error) {
				if attempt == 1 {
					return nil, exitErr("ERROR: HTTP Error 429: Too Many Requests")
				}
				return metaFor("r")(attempt)
			},
		},
		download: writeVideo("mp4"),
	}
	store := &mockStore{}
	repo := &mockMediaRepository{}
	repo.On("ListSourceURLs", mock.Anything).Return(map[string]struct{}{}, nil)
	store.On("Put", mock.Anything, "r.mp4", mock.Anything).Return("r.mp4", nil)
	repo.On("Create", mock.Anything, mock.Anything).Return(true, nil)

	cfg := testConfig()
	cfg.MaxRetries = 2
	cfg.BaseDelay = time.Second
	svc, sleeper := newTestService(t, runner, store, repo, cfg)

	result, err := svc.Run(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 2, runner.metadataCalls["https://x/video/r"])
	assert.Equal(t, []time.Duration{time.Second}, sleeper.waits)
}

func TestService_Run_CooldownAfterConsecutiveFailures(t *testing.T) {
	private := func(int) ([]byte, error) { return nil, exitErr("ERROR: This video is private") }
	runner := &scriptedRunner{
		list: []string{"https://x/video/1", "https://x/video/2", "https://x/video/3"},
		metadata: map[string]func(int) ([]byte, error){
			"https://x/video/1": private,
			"https://x/video/2": private,
			"https://x/video/3": private,
		},
	}
	repo := &mockMediaRepository{}
	repo.On("ListSourceURLs", mock.Anything).Return(map[string]struct{}{}, nil)

	svc, sleeper := newTestService(t, runner, &mockStore{}, repo, testConfig())
	result, err := svc.Run(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, 3, result.Failed)
	assert.Zero(t, result.Success)
	// pacing, pacing, then the cooldown before the third item
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond, time.Minute}, sleeper.waits)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Run_RemovesTempDirOnFailure(t *testing.T) {
	runner := &scriptedRunner{
		list:     []string{"https://x/video/u"},
		metadata: map[string]func(int) ([]byte, error){"https://x/video/u": metaFor("u")},
		download: writeVideo("mp4"),
	}
	store := &mockStore{}
	repo := &mockMediaRepository{}
	repo.On("ListSourceURLs", mock.Anything).Return(map[string]struct{}{}, nil)
	store.On("Put", mock.Anything, "u.mp4", mock.Anything).Return("", apperrors.Transient(nil, "upload failed"))

	svc, _ := newTestService(t, runner, store, repo, testConfig())
	result, err := svc.Run(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	entries, err := os.ReadDir(svc.tempRoot)
	require.NoError(t, err)
	assert.Empty(t, entries)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Run_RetriesTransientUpload(t *testing.T) {
	tests := []struct {
		name        string
		firstErr    error
		wantSuccess int
		wantPuts    int
		wantWaits   []time.Duration
	}{
		{
			name:        "transient failure is retried",
			firstErr:    apperrors.Transient(nil, "gcs 503"),
			wantSuccess: 1,
			wantPuts:    2,
			wantWaits:   []time.Duration{time.Second},
		},
		{
			name:      "permanent failure is not retried",
			firstErr:  apperrors.New(apperrors.CodeExternal, "gcs 403"),
			wantPuts:  1,
			wantWaits: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &scriptedRunner{
				list:     []string{"https://x/video/g"},
				metadata: map[string]func(int) ([]byte, error){"https://x/video/g": metaFor("g")},
				download: writeVideo("mp4"),
			}
			store := &mockStore{}
			repo := &mockMediaRepository{}
			repo.On("ListSourceURLs", mock.Anything).Return(map[string]struct{}{}, nil)
			store.On("Put", mock.Anything, "g.mp4", mock.Anything).Return("", tt.firstErr).Once()
			store.On("Put", mock.Anything, "g.mp4", mock.Anything).Return("g.mp4", nil).Once()
			repo.On("Create", mock.Anything, mock.MatchedBy(func(item *model.MediaItem) bool {
				return item.StorageKey != nil && *item.StorageKey == "g.mp4"
			})).Return(true, nil).Maybe()

			cfg := testConfig()
			cfg.MaxRetries = 4
			cfg.BaseDelay = time.Second
			svc, sleeper := newTestService(t, runner, store, repo, cfg)

			result, err := svc.Run(context.Background(), Options{})

			require.NoError(t, err)
			assert.Equal(t, tt.wantSuccess, result.Success)
			assert.Equal(t, 1-tt.wantSuccess, result.Failed)
			store.AssertNumberOfCalls(t, "Put", tt.wantPuts)
			assert.Equal(t, tt.wantWaits, sleeper.waits)
		})
	}
}

func TestService_Run_NothingNew(t *testing.T) {
	runner := &scriptedRunner{list: []string{"https://x/video/a"}}
	repo := &mockMediaRepository{}
	repo.On("ListSourceURLs", mock.Anything).Return(map[string]struct{}{"https://x/video/a": {}}, nil)

	svc, _ := newTestService(t, runner, &mockStore{}, repo, testConfig())
	result, err := svc.Run(context.Background(), Options{})

	require.NoError(t, err)
	assert.Equal(t, &Result{RunID: result.RunID, Discovered: 1, Skipped: 1}, result)
}

func TestService_Run_RequiresProfile(t *testing.T) {
	cfg := testConfig()
	cfg.ProfileURL = ""
	svc, _ := newTestService(t, &scriptedRunner{}, &mockStore{}, &mockMediaRepository{}, cfg)

	_, err := svc.Run(context.Background(), Options{})
	assert.True(t, apperrors.IsFatalConfig(err))
}

func TestService_Run_StopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &scriptedRunner{
		list: []string{"https://x/video/1", "https://x/video/2"},
		metadata: map[string]func(int) ([]byte, error){
			"https://x/video/1": func(int) ([]byte, error) {
				cancel()
				return nil, context.Canceled
			},
		},
	}
	repo := &mockMediaRepository{}
	repo.On("ListSourceURLs", mock.Anything).Return(map[string]struct{}{}, nil)

	svc, _ := newTestService(t, runner, &mockStore{}, repo, testConfig())
	result, err := svc.Run(ctx, Options{})

	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, result)
	assert.Zero(t, result.Failed)
}

func TestFindDownloadedFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "42.info.json"), []byte("{}"), 0600))

	_, _, err := findDownloadedFile(dir, "42")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermanentItem))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "42.mkv"), []byte("v"), 0600))
	path, ext, err := findDownloadedFile(dir, "42")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "42.mkv"), path)
	assert.Equal(t, "mkv", ext)
}
