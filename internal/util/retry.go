package util

import (
	"context"
	"time"
)

// Sleeper 可取消的等待，测试中可替换为立即返回的实现。
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep 等待 d，ctx 取消时提前返回 ctx.Err()。
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Poll 最多执行 attempts 次 fn，两次之间固定等待 interval。
// fn 返回 done=true 或错误时立即结束；返回值为实际执行次数。
func Poll(ctx context.Context, attempts int, interval time.Duration, sleep Sleeper, fn func(attempt int) (bool, error)) (int, error) {
	if attempts <= 0 {
		attempts = 1
	}
	if sleep == nil {
		sleep = Sleep
	}
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return i - 1, err
		}
		done, err := fn(i)
		if err != nil || done {
			return i, err
		}
		if i == attempts {
			break
		}
		if err := sleep(ctx, interval); err != nil {
			return i, err
		}
	}
	return attempts, nil
}
