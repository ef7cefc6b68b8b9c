package imaging

import (
	"context"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/tool-forge/internal/apierror"
	"github.com/yourusername/tool-forge/internal/httputil"
	"github.com/yourusername/tool-forge/internal/storage"
)

// BackgroundService は背景除去を提供します。
type BackgroundService interface {
	RemoveBackground(ctx context.Context, files []*multipart.FileHeader) ([]storage.Artifact, error)
}

// ConvertService は形式変換を提供します。
type ConvertService interface {
	Convert(ctx context.Context, files []*multipart.FileHeader, format string, width, height int) ([]storage.Artifact, error)
}

// BatchResult は複数画像処理のレスポンスです。
type BatchResult struct {
	Message string             `json:"message"`
	Files   []storage.Artifact `json:"files"`
}

// RemoveBackgroundHandler は POST /api/remove-background のハンドラーを返します。
func RemoveBackgroundHandler(svc BackgroundService, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := httputil.ParseForm(c)
		if err != nil {
			apierror.Respond(c, logger, "remove_background", err)
			return
		}
		defer form.RemoveAll()

		files := httputil.Files(form, "files", "files[]")
		if len(files) == 0 {
			apierror.Respond(c, logger, "remove_background", apierror.Validation("INVALID_INPUT", "画像ファイルを選択してください。"))
			return
		}

		artifacts, err := svc.RemoveBackground(c.Request.Context(), files)
		if err != nil {
			apierror.Respond(c, logger, "remove_background", err)
			return
		}
		c.JSON(http.StatusOK, BatchResult{Message: "Background removal processed", Files: artifacts})
	}
}

// ConvertHandler は POST /api/convert-image のハンドラーを返します。
func ConvertHandler(svc ConvertService, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := httputil.ParseForm(c)
		if err != nil {
			apierror.Respond(c, logger, "convert_image", err)
			return
		}
		defer form.RemoveAll()

		files := httputil.Files(form, "files", "files[]")
		if len(files) == 0 {
			apierror.Respond(c, logger, "convert_image", apierror.Validation("INVALID_INPUT", "画像ファイルを選択してください。"))
			return
		}
		format, err := httputil.Required(c, "format")
		if err != nil {
			apierror.Respond(c, logger, "convert_image", err)
			return
		}
		width, err := httputil.Int(c, "width", 0)
		if err != nil {
			apierror.Respond(c, logger, "convert_image", err)
			return
		}
		height, err := httputil.Int(c, "height", 0)
		if err != nil {
			apierror.Respond(c, logger, "convert_image", err)
			return
		}

		artifacts, err := svc.Convert(c.Request.Context(), files, format, width, height)
		if err != nil {
			apierror.Respond(c, logger, "convert_image", err)
			return
		}
		c.JSON(http.StatusOK, BatchResult{Message: "Image conversion processed", Files: artifacts})
	}
}
