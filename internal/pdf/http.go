package pdf

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

// MergeService は結合処理を提供します。
type MergeService interface {
	Merge(ctx context.Context, files []*multipart.FileHeader) (storage.Artifact, error)
}

// SplitService は分割処理を提供します。
type SplitService interface {
	Split(ctx context.Context, file *multipart.FileHeader, opts SplitOptions) (storage.Artifact, error)
}

// WatermarkService は透かし処理を提供します。
type WatermarkService interface {
	Watermark(ctx context.Context, file, image *multipart.FileHeader, opts WatermarkOptions) (storage.Artifact, error)
}

// MergeHandler は POST /api/pdf/merge のハンドラーを返します。
func MergeHandler(svc MergeService, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := httputil.ParseForm(c)
		if err != nil {
			apierror.Respond(c, logger, "merge_pdfs", err)
			return
		}
		defer form.RemoveAll()

		files := httputil.Files(form, "files", "files[]")
		if len(files) == 0 {
			apierror.Respond(c, logger, "merge_pdfs", invalidInput("アップロードされたPDFファイルが見つかりません。"))
			return
		}

		artifact, err := svc.Merge(c.Request.Context(), files)
		if err != nil {
			apierror.Respond(c, logger, "merge_pdfs", err)
			return
		}
		c.JSON(http.StatusOK, artifact)
	}
}

// SplitHandler は POST /api/pdf/split のハンドラーを返します。
func SplitHandler(svc SplitService, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := httputil.ParseForm(c)
		if err != nil {
			apierror.Respond(c, logger, "split_pdf", err)
			return
		}
		defer form.RemoveAll()

		file := httputil.SingleFile(form, "file", "file[]", "files", "files[]")
		if file == nil {
			apierror.Respond(c, logger, "split_pdf", invalidInput("PDFファイルを選択してください。"))
			return
		}

		rawType, err := httputil.Required(c, "split_type")
		if err != nil {
			apierror.Respond(c, logger, "split_pdf", err)
			return
		}
		splitType, err := ParseSplitType(rawType)
		if err != nil {
			apierror.Respond(c, logger, "split_pdf", err)
			return
		}
		splitValue, err := httputil.Required(c, "split_value")
		if err != nil {
			apierror.Respond(c, logger, "split_pdf", err)
			return
		}

		artifact, err := svc.Split(c.Request.Context(), file, SplitOptions{Type: splitType, Value: splitValue})
		if err != nil {
			apierror.Respond(c, logger, "split_pdf", err)
			return
		}
		c.JSON(http.StatusOK, artifact)
	}
}

// WatermarkHandler は POST /api/pdf/add-watermark のハンドラーを返します。
func WatermarkHandler(svc WatermarkService, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := httputil.ParseForm(c)
		if err != nil {
			apierror.Respond(c, logger, "add_watermark", err)
			return
		}
		defer form.RemoveAll()

		file := httputil.SingleFile(form, "file", "file[]")
		if file == nil {
			apierror.Respond(c, logger, "add_watermark", invalidInput("PDFファイルを選択してください。"))
			return
		}

		opts, err := parseWatermarkOptions(c)
		if err != nil {
			apierror.Respond(c, logger, "add_watermark", err)
			return
		}
		image := httputil.SingleFile(form, "watermark_image")

		artifact, err := svc.Watermark(c.Request.Context(), file, image, opts)
		if err != nil {
			apierror.Respond(c, logger, "add_watermark", err)
			return
		}
		c.JSON(http.StatusOK, artifact)
	}
}

func parseWatermarkOptions(c *gin.Context) (WatermarkOptions, error) {
	opts := DefaultWatermarkOptions()

	rawType, err := httputil.Required(c, "watermark_type")
	if err != nil {
		return opts, err
	}
	opts.Type = WatermarkType(rawType)
	opts.Text = c.PostForm("watermark_text")

	if opts.FontSize, err = httputil.Int(c, "font_size", opts.FontSize); err != nil {
		return opts, err
	}
	if opts.Rotation, err = httputil.Int(c, "rotation", opts.Rotation); err != nil {
		return opts, err
	}
	if opts.Opacity, err = httputil.Float(c, "opacity", opts.Opacity); err != nil {
		return opts, err
	}
	if opts.WidthSpacer, err = httputil.Int(c, "width_spacer", opts.WidthSpacer); err != nil {
		return opts, err
	}
	if opts.HeightSpacer, err = httputil.Int(c, "height_spacer", opts.HeightSpacer); err != nil {
		return opts, err
	}
	return opts, nil
}
