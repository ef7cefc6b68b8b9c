package video

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/tool-forge/internal/apierror"
	"github.com/yourusername/tool-forge/internal/httputil"
)

// InfoService は動画情報の取得を提供します。
type InfoService interface {
	Info(ctx context.Context, url string) (*Info, error)
}

// DownloadService は動画のダウンロードを提供します。
type DownloadService interface {
	Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error)
}

// InfoHandler は POST /api/get-video-info のハンドラーを返します。
func InfoHandler(svc InfoService, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		url, err := httputil.Required(c, "url")
		if err != nil {
			apierror.Respond(c, logger, "get_video_info", err)
			return
		}

		info, err := svc.Info(c.Request.Context(), url)
		if err != nil {
			apierror.Respond(c, logger, "get_video_info", err)
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

// DownloadHandler は POST /api/download-video のハンドラーを返します。
func DownloadHandler(svc DownloadService, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		url, err := httputil.Required(c, "url")
		if err != nil {
			apierror.Respond(c, logger, "download_video", err)
			return
		}
		audioOnly, err := httputil.Bool(c, "audio_only", false)
		if err != nil {
			apierror.Respond(c, logger, "download_video", err)
			return
		}

		req := DownloadRequest{
			URL:       url,
			FormatID:  c.PostForm("format_id"),
			AudioOnly: audioOnly,
			Format:    c.DefaultPostForm("format", defaultContainer),
			JobID:     c.PostForm("job_id"),
		}
		result, err := svc.Download(c.Request.Context(), req)
		if err != nil {
			apierror.Respond(c, logger, "download_video", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
