// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// ステージングディレクトリ
	UploadDir   string // アップロードの一時保存先
	OutputDir   string // 処理結果の保存先
	DownloadDir string // 動画ダウンロードの保存先

	// ファイル制限
	MaxFileSize int64 // 単一ファイルの最大サイズ（バイト）

	// 外部サービス設定
	StirlingPDFURL    string // Stirling-PDF のベースURL（空の場合は pdfcpu でローカル処理）
	StirlingPDFAPIKey string // Stirling-PDF の API キー
	RembgURL          string // rembg サーバーのベースURL（空の場合はローカル処理）
	HTTPClientTimeout int    // 外部サービス呼び出しのタイムアウト（秒）

	// yt-dlp 設定
	YtdlpPath                string // yt-dlp 実行ファイルのパス（空の場合は PATH から解決）
	YtdlpCookiesBrowser      string // Cookie を読み込むブラウザ（空で無効）
	YtdlpConcurrentFragments int    // フラグメントの並列ダウンロード数
	YtdlpRetries             int    // 抽出・フラグメント・通信のリトライ回数

	// 進捗設定
	ProgressRedisURL   string // 進捗を複製する Redis の接続URL（空で無効）
	ProgressTTLMinutes int    // Redis 上の進捗レコードの有効期限（分）
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8000"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3010,http://10.0.0.201:3010,https://tools.mikey.host"),

		// ステージングディレクトリ
		UploadDir:   getEnv("UPLOAD_DIR", "uploads"),
		OutputDir:   getEnv("OUTPUT_DIR", "outputs"),
		DownloadDir: getEnv("DOWNLOAD_DIR", "downloads"),

		// ファイル制限
		MaxFileSize: getEnvAsInt64("MAX_FILE_SIZE", 104857600), // 100MB

		// 外部サービス設定
		StirlingPDFURL:    getEnv("STIRLING_PDF_URL", ""),
		StirlingPDFAPIKey: getEnv("STIRLING_PDF_API_KEY", ""),
		RembgURL:          getEnv("REMBG_URL", ""),
		HTTPClientTimeout: getEnvAsInt("HTTP_CLIENT_TIMEOUT_SECONDS", 300),

		// yt-dlp 設定
		YtdlpPath:                getEnv("YTDLP_PATH", ""),
		YtdlpCookiesBrowser:      getEnv("YTDLP_COOKIES_BROWSER", "chrome"),
		YtdlpConcurrentFragments: getEnvAsInt("YTDLP_CONCURRENT_FRAGMENTS", 3),
		YtdlpRetries:             getEnvAsInt("YTDLP_RETRIES", 3),

		// 進捗設定
		ProgressRedisURL:   getEnv("PROGRESS_REDIS_URL", ""),
		ProgressTTLMinutes: getEnvAsInt("PROGRESS_TTL_MINUTES", 60),
	}

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// AllowedOrigins は CORS 許可オリジンを配列で返します。
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	if c.UploadDir == "" || c.OutputDir == "" || c.DownloadDir == "" {
		return fmt.Errorf("UPLOAD_DIR, OUTPUT_DIR and DOWNLOAD_DIR must not be empty")
	}
	if len(c.AllowedOrigins()) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must contain at least one origin")
	}
	if c.YtdlpConcurrentFragments <= 0 {
		return fmt.Errorf("YTDLP_CONCURRENT_FRAGMENTS must be positive")
	}
	if c.YtdlpRetries < 0 {
		return fmt.Errorf("YTDLP_RETRIES must not be negative")
	}

	// 本番環境では外部サービスの指定を必須とする
	if c.GinMode == "release" {
		if c.StirlingPDFURL == "" {
			return fmt.Errorf("STIRLING_PDF_URL is required in release mode")
		}
	}

	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
