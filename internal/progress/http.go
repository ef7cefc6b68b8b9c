package progress

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/tool-forge/internal/apierror"
)

// Handler は GET /api/download-progress と GET /api/download-progress/:id のハンドラーを返します。
// ジョブIDが指定されない場合は最後に開始されたジョブの進捗を返します。
func Handler(tracker *Tracker, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		jobID := strings.TrimSpace(c.Param("id"))
		if jobID == "" {
			jobID = strings.TrimSpace(c.Query("job_id"))
		}
		if jobID == "" {
			c.JSON(http.StatusOK, tracker.Latest())
			return
		}

		record, ok := tracker.Read(c.Request.Context(), jobID)
		if !ok {
			apierror.Respond(c, logger, "download_progress",
				apierror.NotFound("JOB_NOT_FOUND", "指定されたジョブは存在しません。"))
			return
		}
		c.JSON(http.StatusOK, record)
	}
}
