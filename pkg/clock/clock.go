package clock

import (
	"sync"
	"time"
)

// Clock 时间源抽象
// 租约到期、回收扫描等逻辑统一从 Clock 取"当前时间"，便于测试固定时间点
type Clock interface {
	Now() time.Time
}

// Real 系统时钟（UTC）
type Real struct{}

// Now 返回当前 UTC 时间
func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed 可手动拨动的时钟，仅用于测试与回放
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed 创建停在 t 的时钟
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t.UTC()}
}

// Now 返回当前设定时间
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance 前拨 d
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set 直接设定时间
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}
