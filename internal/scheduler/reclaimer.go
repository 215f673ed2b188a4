package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"osm-eval/backend/internal/service"
)

// sweepTimeout 单次定时回收的超时时间
const sweepTimeout = 5 * time.Minute

// Reclaimer 按 cron 表达式周期性执行过期租约回收
// 上一轮未结束时跳过本轮，不会并发扫描
type Reclaimer struct {
	cron   *cron.Cron
	svc    service.ReclaimService
	logger *zap.Logger
}

// NewReclaimer 创建回收调度器；schedule 支持标准 5 段表达式及 @hourly、@every 10m 等描述符
func NewReclaimer(schedule string, svc service.ReclaimService, logger *zap.Logger) (*Reclaimer, error) {
	cl := cronLogger{sugar: logger.Sugar()}
	r := &Reclaimer{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		svc:    svc,
		logger: logger,
	}
	if _, err := r.cron.AddFunc(schedule, r.RunOnce); err != nil {
		return nil, fmt.Errorf("无效的回收调度表达式 %q: %w", schedule, err)
	}
	return r, nil
}

// Start 启动调度（非阻塞）
func (r *Reclaimer) Start() {
	r.cron.Start()
	for _, e := range r.cron.Entries() {
		r.logger.Info("过期回收任务已调度", zap.Time("next_run", e.Next))
	}
}

// Stop 停止调度并等待进行中的回收结束，最长等待到 ctx 截止
func (r *Reclaimer) Stop(ctx context.Context) {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		r.logger.Info("过期回收任务已停止")
	case <-ctx.Done():
		r.logger.Warn("等待进行中的回收任务超时")
	}
}

// RunOnce 执行一次回收扫描
func (r *Reclaimer) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	if _, err := r.svc.Sweep(ctx); err != nil {
		r.logger.Error("定时回收失败", zap.Error(err))
	}
}

// cronLogger 将 cron 内部日志转到 zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
