package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// intervalWriter 按固定时钟窗口切割日志文件, 窗口起点对齐到间隔整点, 重启后
// 续写当前窗口的文件而不是另起一个。文件名 <base>.log.YYYYMMDD (天及以上)
// 或 <base>.log.YYYYMMDDHHmmss。按大小切割是 lumberjack 的事, 这个 writer
// 服务的是 "不论大小一天一个文件" 的部署。
type intervalWriter struct {
	mu    sync.Mutex
	dir   string
	base  string
	every time.Duration
	keep  time.Duration // 0 表示不清理

	file    *os.File
	nextCut time.Time
}

func newIntervalWriter(dir, base string, rc *RotateConfig) (*intervalWriter, error) {
	if rc == nil || rc.RotateInterval <= 0 {
		return nil, fmt.Errorf("invalid rotate interval: %v", rc)
	}
	w := &intervalWriter{dir: dir, base: base, every: rc.RotateInterval}
	if rc.CleanupEnabled && rc.MaxAge > 0 {
		w.keep = rc.MaxAge
	}
	if err := w.cut(time.Now()); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *intervalWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if now := time.Now(); !now.Before(w.nextCut) {
		if err := w.cut(now); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *intervalWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *intervalWriter) stampLayout() string {
	if w.every >= 24*time.Hour {
		return "20060102"
	}
	return "20060102150405"
}

// cut 关旧开新, 文件按窗口起点命名。构造之后的调用都在锁内。
func (w *intervalWriter) cut(now time.Time) error {
	if w.file != nil {
		_ = w.file.Sync()
		_ = w.file.Close()
	}
	start := now.Truncate(w.every)
	name := fmt.Sprintf("%s.log.%s", w.base, start.Format(w.stampLayout()))
	f, err := os.OpenFile(filepath.Join(w.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("open rotated log file: %w", err)
	}
	w.file = f
	w.nextCut = start.Add(w.every)
	if w.keep > 0 {
		w.sweep(now)
	}
	return nil
}

// sweep 清掉超龄的切割文件。时间戳 8 位按天解析, 14 位按秒解析,
// 解析不动的名字一律不碰。
func (w *intervalWriter) sweep(now time.Time) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return
	}
	cutoff := now.Add(-w.keep)
	prefix := w.base + ".log."
	for _, e := range entries {
		stamp, ok := strings.CutPrefix(e.Name(), prefix)
		if !ok {
			continue
		}
		var layout string
		switch len(stamp) {
		case 8:
			layout = "20060102"
		case 14:
			layout = "20060102150405"
		default:
			continue
		}
		ts, err := time.Parse(layout, stamp)
		if err != nil {
			continue
		}
		if ts.Before(cutoff) {
			_ = os.Remove(filepath.Join(w.dir, e.Name()))
		}
	}
}
