// Package video は動画情報の取得とダウンロード、進捗の報告を提供します。
package video

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/yourusername/tool-forge/internal/apierror"
	"github.com/yourusername/tool-forge/internal/metrics"
	"github.com/yourusername/tool-forge/internal/progress"
	"github.com/yourusername/tool-forge/internal/storage"
)

const eventBuffer = 32

// Service は Extractor を呼び出し、ダウンロードの進捗を Tracker に反映します。
type Service struct {
	extractor Extractor
	store     *storage.Local
	tracker   *progress.Tracker
	planOpts  PlanOptions
	logger    *log.Logger
}

// NewService は Service を作成します。planOpts.DownloadDir が空の場合は store のダウンロード先を使います。
func NewService(extractor Extractor, store *storage.Local, tracker *progress.Tracker, planOpts PlanOptions, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	if planOpts.DownloadDir == "" {
		planOpts.DownloadDir = store.DownloadDir()
	}
	return &Service{
		extractor: extractor,
		store:     store,
		tracker:   tracker,
		planOpts:  planOpts,
		logger:    logger,
	}
}

// Info は動画のタイトル等と選択可能な映像フォーマットを返します。
func (s *Service) Info(ctx context.Context, url string) (*Info, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, apierror.Validation("INVALID_INPUT", "url を指定してください。")
	}

	s.logger.Printf("fetching video info for %s", url)
	meta, err := s.extractor.Extract(ctx, url)
	if err != nil {
		return nil, collaboratorError(ctx, "動画情報の取得に失敗しました", err)
	}
	return &Info{
		Title:     meta.Title,
		Thumbnail: meta.Thumbnail,
		Formats:   SelectFormats(meta.Formats),
		Duration:  meta.Duration,
	}, nil
}

// Download はダウンロード先を空にしてからダウンロードを実行します。
// 進捗は req.JobID（空の場合は新規発行）のレコードに記録されます。
func (s *Service) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return nil, apierror.Validation("INVALID_INPUT", "url を指定してください。")
	}
	container, err := normalizeContainer(req.Format)
	if err != nil {
		return nil, err
	}
	req.Format = container
	if req.JobID == "" {
		req.JobID = uuid.NewString()
	}

	s.store.ClearDownloads()
	s.tracker.Reset(ctx, req.JobID)

	plan := BuildPlan(req, s.planOpts)
	s.logger.Printf("download %s started (job=%s format=%s audio_only=%t)", req.URL, req.JobID, plan.Format, req.AudioOnly)

	// 進捗の反映はリクエストが切断されても最後まで行う
	trackCtx := context.WithoutCancel(ctx)
	events := make(chan progress.Event, eventBuffer)
	consumed := make(chan struct{})
	go func() {
		defer close(consumed)
		s.tracker.Consume(trackCtx, req.JobID, events)
	}()

	metrics.DownloadStarted()
	meta, err := s.extractor.Download(ctx, req.URL, plan, events)
	close(events)
	<-consumed

	if err == nil && meta.Filename == "" {
		err = apierror.Collaborator("ダウンロードしたファイル名を取得できませんでした", 0, errors.New("empty filename"))
	}
	if err != nil {
		metrics.DownloadFinished("error")
		s.tracker.Update(trackCtx, req.JobID, progress.Event{Status: progress.StatusError, Message: err.Error()})
		return nil, collaboratorError(ctx, "動画のダウンロードに失敗しました", err)
	}

	metrics.DownloadFinished("ok")
	s.tracker.Update(trackCtx, req.JobID, progress.Event{Status: progress.StatusFinished})

	filename := plan.ResultFilename(meta.Filename)
	s.logger.Printf("download finished (job=%s file=%s)", req.JobID, filename)
	return &DownloadResult{
		JobID:        req.JobID,
		Title:        meta.Title,
		Duration:     meta.Duration,
		Thumbnail:    meta.Thumbnail,
		DownloadPath: filename,
	}, nil
}

func collaboratorError(ctx context.Context, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var apiErr *apierror.Error
	if errors.As(err, &apiErr) {
		return err
	}
	return apierror.Collaborator(message, 0, err)
}
