package progress

import "time"

// Status はダウンロードの実行状態を表します。
type Status string

const (
	StatusIdle        Status = "idle"
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusFinished    Status = "finished"
	StatusError       Status = "error"
)

// IsTerminal は完了・失敗のいずれかかを返します。
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusError
}

// Record はダウンロードジョブ1件分の進捗スナップショットです。
type Record struct {
	JobID           string    `json:"job_id,omitempty"`
	Status          Status    `json:"status"`
	DownloadedBytes int64     `json:"downloaded_bytes"`
	TotalBytes      int64     `json:"total_bytes"`
	Speed           float64   `json:"speed"` // bytes/sec
	ETA             float64   `json:"eta"`   // 秒
	Filename        string    `json:"filename"`
	Error           string    `json:"error,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Event はダウンローダーから届く進捗イベントです。
type Event struct {
	Status             Status
	DownloadedBytes    int64
	TotalBytes         int64
	TotalBytesEstimate int64
	Speed              float64
	ETA                float64
	Filename           string
	Message            string
}

func idleRecord(jobID string) Record {
	return Record{JobID: jobID, Status: StatusIdle}
}
