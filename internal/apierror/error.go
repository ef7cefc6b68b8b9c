// Package apierror は API 共通のエラー型と HTTP レスポンスへの変換を提供します。
package apierror

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Kind はエラーの分類を表します。
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindCollaborator
)

// Error はクライアントへ返すコードとメッセージを保持するエラーです。
type Error struct {
	Kind    Kind
	Code    string
	Message string
	// Status は外部サービスが返した HTTP ステータス（不明な場合は 0）。
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation は入力不備を表すエラーを生成します。
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// NotFound は対象が存在しないことを表すエラーを生成します。
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Collaborator は外部サービス・ライブラリの失敗を表すエラーを生成します。
func Collaborator(message string, status int, err error) *Error {
	return &Error{
		Kind:    KindCollaborator,
		Code:    "COLLABORATOR_ERROR",
		Message: message,
		Status:  status,
		Err:     err,
	}
}

// StatusCode は err に対応する HTTP ステータスを返します。
func StatusCode(err error) int {
	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		switch apiErr.Kind {
		case KindValidation:
			if apiErr.Code == "LIMIT_EXCEEDED" {
				return http.StatusRequestEntityTooLarge
			}
			return http.StatusBadRequest
		case KindNotFound:
			return http.StatusNotFound
		case KindCollaborator:
			if apiErr.Status != 0 {
				return http.StatusBadGateway
			}
			return http.StatusInternalServerError
		}
		return http.StatusInternalServerError
	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Respond は err をログに残し、分類に応じたステータスで JSON を返します。
func Respond(c *gin.Context, logger *log.Logger, op string, err error) {
	if logger == nil {
		logger = log.Default()
	}
	status := StatusCode(err)
	logger.Printf("%s failed (status=%d): %v", op, status, err)

	var apiErr *Error
	switch {
	case errors.As(err, &apiErr):
		detail := apiErr.Message
		if apiErr.Kind == KindCollaborator && apiErr.Err != nil {
			detail = fmt.Sprintf("%s: %v", apiErr.Message, apiErr.Err)
		}
		c.JSON(status, gin.H{
			"code":   apiErr.Code,
			"detail": detail,
		})
	case errors.Is(err, context.Canceled):
		c.JSON(status, gin.H{
			"code":   "REQUEST_CANCELED",
			"detail": "リクエストがキャンセルされました。",
		})
	default:
		c.JSON(status, gin.H{
			"code":   "INTERNAL_ERROR",
			"detail": err.Error(),
		})
	}
}
