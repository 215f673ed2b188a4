package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"osm-eval/backend/internal/service"
)

type mockReclaimService struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockReclaimService) Sweep(ctx context.Context) (*service.SweepResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if _, ok := ctx.Deadline(); !ok {
		return nil, errors.New("回收应带超时")
	}
	return &service.SweepResult{}, m.err
}

func (m *mockReclaimService) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestNewReclaimer_InvalidSchedule(t *testing.T) {
	_, err := NewReclaimer("every hour", &mockReclaimService{}, zap.NewNop())
	if err == nil {
		t.Fatal("期望无效表达式返回错误")
	}
}

func TestNewReclaimer_Descriptors(t *testing.T) {
	for _, spec := range []string{"@hourly", "@every 10m", "*/5 * * * *"} {
		if _, err := NewReclaimer(spec, &mockReclaimService{}, zap.NewNop()); err != nil {
			t.Errorf("表达式 %q 应合法，实际: %v", spec, err)
		}
	}
}

func TestReclaimer_RunOnce(t *testing.T) {
	svc := &mockReclaimService{}
	r, err := NewReclaimer("@hourly", svc, zap.NewNop())
	if err != nil {
		t.Fatalf("创建调度器失败: %v", err)
	}

	r.RunOnce()
	if svc.count() != 1 {
		t.Errorf("期望执行 1 次，实际 %d", svc.count())
	}
}

func TestReclaimer_RunOnce_ErrorDoesNotPanic(t *testing.T) {
	svc := &mockReclaimService{err: errors.New("db down")}
	r, err := NewReclaimer("@hourly", svc, zap.NewNop())
	if err != nil {
		t.Fatalf("创建调度器失败: %v", err)
	}
	r.RunOnce()
	if svc.count() != 1 {
		t.Errorf("期望执行 1 次，实际 %d", svc.count())
	}
}

func TestReclaimer_StartStop(t *testing.T) {
	svc := &mockReclaimService{}
	r, err := NewReclaimer("@hourly", svc, zap.NewNop())
	if err != nil {
		t.Fatalf("创建调度器失败: %v", err)
	}

	r.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r.Stop(ctx)

	if svc.count() != 0 {
		t.Errorf("@hourly 调度不应立即执行，实际执行 %d 次", svc.count())
	}
}
