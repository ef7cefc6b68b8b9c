package storage

import (
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/tool-forge/internal/apierror"
)

// DownloadHandler は GET /api/download/:filename のハンドラーを返します。
func DownloadHandler(local *Local, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filename := c.Param("filename")

		path, err := local.Locate(filename)
		if err != nil {
			apierror.Respond(c, logger, "download_file", err)
			return
		}

		file, err := os.Open(path)
		if err != nil {
			apierror.Respond(c, logger, "download_file", fmt.Errorf("ファイルのオープンに失敗しました: %w", err))
			return
		}
		defer file.Close()

		info, err := file.Stat()
		if err != nil {
			apierror.Respond(c, logger, "download_file", fmt.Errorf("ファイル情報の取得に失敗しました: %w", err))
			return
		}

		contentType := "application/octet-stream"
		encodedName := url.PathEscape(filename)
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"; filename*=UTF-8''%s", filename, encodedName))
		c.Header("Cache-Control", "no-store")
		c.DataFromReader(http.StatusOK, info.Size(), contentType, file, nil)
	}
}
