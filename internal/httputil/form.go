// Package httputil は multipart フォームの読み取りヘルパーを提供します。
package httputil

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/tool-forge/internal/apierror"
)

// ParseForm は multipart フォームを読み込みます。呼び出し側で form.RemoveAll() を defer してください。
func ParseForm(c *gin.Context) (*multipart.Form, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apierror.Validation("INVALID_INPUT", "multipart/form-data でファイルを送信してください。")
	}
	return form, nil
}

// Files は names のうち最初に見つかったフィールドのファイル群を返します。
func Files(form *multipart.Form, names ...string) []*multipart.FileHeader {
	if form == nil {
		return nil
	}
	for _, name := range names {
		if files := form.File[name]; len(files) > 0 {
			return files
		}
	}
	return nil
}

// SingleFile は names のうち最初に見つかったフィールドの先頭ファイルを返します。
func SingleFile(form *multipart.Form, names ...string) *multipart.FileHeader {
	if files := Files(form, names...); len(files) > 0 {
		return files[0]
	}
	return nil
}

// Int はフォーム値を整数として読み取ります。未指定の場合は def を返します。
func Int(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.PostForm(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierror.Validation("INVALID_INPUT", fmt.Sprintf("%s は整数で指定してください。", name))
	}
	return v, nil
}

// Float はフォーム値を浮動小数点数として読み取ります。
func Float(c *gin.Context, name string, def float64) (float64, error) {
	raw := strings.TrimSpace(c.PostForm(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apierror.Validation("INVALID_INPUT", fmt.Sprintf("%s は数値で指定してください。", name))
	}
	return v, nil
}

// Bool はフォーム値を真偽値として読み取ります（"true", "1", "on" など）。
func Bool(c *gin.Context, name string, def bool) (bool, error) {
	raw := strings.ToLower(strings.TrimSpace(c.PostForm(name)))
	switch raw {
	case "":
		return def, nil
	case "on", "yes":
		return true, nil
	case "off", "no":
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apierror.Validation("INVALID_INPUT", fmt.Sprintf("%s は true/false で指定してください。", name))
	}
	return v, nil
}

// Required は必須のフォーム値を読み取ります。
func Required(c *gin.Context, name string) (string, error) {
	v := strings.TrimSpace(c.PostForm(name))
	if v == "" {
		return "", apierror.Validation("INVALID_INPUT", fmt.Sprintf("%s を指定してください。", name))
	}
	return v, nil
}
