// Package progress はダウンロードジョブごとの進捗管理を提供します。
package progress

import (
	"context"
	"log"
	"sync"
	"time"
)

const (
	defaultRetainJobs = 100
	mirrorTimeout     = 2 * time.Second
)

// Mirror は進捗レコードの複製先です（Redis など）。
type Mirror interface {
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, jobID string) (*Record, error)
}

// Tracker はジョブIDごとの進捗レコードを保持します。
// 書き込みはダウンローダー側のゴルーチン、読み込みは HTTP ハンドラーから行われます。
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
	latest  string
	retain  int

	mirror Mirror
	logger *log.Logger
	now    func() time.Time
}

// Option は Tracker の設定を変更します。
type Option func(*Tracker)

// WithMirror は進捗の複製先を設定します。
func WithMirror(m Mirror) Option {
	return func(t *Tracker) {
		t.mirror = m
	}
}

// WithRetain はメモリ上に保持するジョブ数の上限を設定します。
func WithRetain(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.retain = n
		}
	}
}

// NewTracker は Tracker を作成します。
func NewTracker(logger *log.Logger, opts ...Option) *Tracker {
	if logger == nil {
		logger = log.Default()
	}
	t := &Tracker{
		records: make(map[string]*Record),
		retain:  defaultRetainJobs,
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reset はジョブの進捗を starting / 0 に初期化し、最新ジョブとして記録します。
func (t *Tracker) Reset(ctx context.Context, jobID string) Record {
	t.mu.Lock()
	record := &Record{
		JobID:     jobID,
		Status:    StatusStarting,
		UpdatedAt: t.now().UTC(),
	}
	if _, exists := t.records[jobID]; !exists {
		t.order = append(t.order, jobID)
	}
	t.records[jobID] = record
	t.latest = jobID
	t.evictLocked()
	snapshot := *record
	t.mu.Unlock()

	t.mirrorSave(ctx, snapshot)
	return snapshot
}

// Update はイベントをジョブのレコードへ反映し、反映後のスナップショットを返します。
// 未知のステータスと、Reset されていないジョブへのイベントは無視します。
func (t *Tracker) Update(ctx context.Context, jobID string, ev Event) Record {
	t.mu.Lock()
	record, ok := t.records[jobID]
	if !ok {
		t.mu.Unlock()
		t.logger.Printf("ignoring progress event for unknown job=%s status=%s", jobID, ev.Status)
		return idleRecord(jobID)
	}

	changed := true
	switch ev.Status {
	case StatusDownloading:
		record.Status = StatusDownloading
		record.DownloadedBytes = ev.DownloadedBytes
		record.TotalBytes = ev.TotalBytes
		if record.TotalBytes == 0 {
			record.TotalBytes = ev.TotalBytesEstimate
		}
		record.Speed = ev.Speed
		record.ETA = ev.ETA
		record.Filename = ev.Filename
	case StatusFinished:
		record.Status = StatusFinished
	case StatusError:
		record.Status = StatusError
		record.Error = ev.Message
	default:
		changed = false
	}
	if changed {
		record.UpdatedAt = t.now().UTC()
	}
	snapshot := *record
	t.mu.Unlock()

	if changed {
		t.mirrorSave(ctx, snapshot)
	}
	return snapshot
}

// Consume はイベントストリームをチャネルが閉じられるまで反映します。
func (t *Tracker) Consume(ctx context.Context, jobID string, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			t.Update(ctx, jobID, ev)
		}
	}
}

// Read はジョブの進捗のコピーを返します。メモリにない場合は複製先を参照します。
func (t *Tracker) Read(ctx context.Context, jobID string) (Record, bool) {
	t.mu.RLock()
	record, ok := t.records[jobID]
	var snapshot Record
	if ok {
		snapshot = *record
	}
	t.mu.RUnlock()
	if ok {
		return snapshot, true
	}

	if t.mirror != nil {
		mirrored, err := t.mirror.Get(ctx, jobID)
		if err != nil {
			t.logger.Printf("failed to read progress mirror job=%s: %v", jobID, err)
		} else if mirrored != nil {
			return *mirrored, true
		}
	}
	return idleRecord(jobID), false
}

// Latest は最後に Reset されたジョブの進捗を返します。ジョブが無い場合は idle を返します。
func (t *Tracker) Latest() Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.latest == "" {
		return idleRecord("")
	}
	record, ok := t.records[t.latest]
	if !ok {
		return idleRecord("")
	}
	return *record
}

// evictLocked は保持上限を超えた古い終了済みジョブを破棄します。
func (t *Tracker) evictLocked() {
	if len(t.order) <= t.retain {
		return
	}
	kept := t.order[:0]
	excess := len(t.order) - t.retain
	for _, id := range t.order {
		record := t.records[id]
		if excess > 0 && id != t.latest && (record == nil || record.Status.IsTerminal()) {
			delete(t.records, id)
			excess--
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}

func (t *Tracker) mirrorSave(ctx context.Context, record Record) {
	if t.mirror == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mirrorTimeout)
	defer cancel()
	if err := t.mirror.Save(ctx, record); err != nil {
		t.logger.Printf("failed to mirror progress job=%s: %v", record.JobID, err)
	}
}
