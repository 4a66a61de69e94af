// Package task 提供后台任务调度
package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// ========== 任务提交与完成测试 ==========

func TestDispatcher_SubmitAndWait(t *testing.T) {
	d := NewDispatcher(2)
	defer d.Shutdown(context.Background())

	var ran atomic.Bool
	task, err := d.Submit("train", func(ctx context.Context) error {
		ran.Store(true)
		return nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case <-task.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("task did not complete in time")
	}
	if !ran.Load() {
		t.Error("task body did not run")
	}
	if task.Err() != nil {
		t.Errorf("Err() = %v, want nil", task.Err())
	}
}

func TestDispatcher_TaskError(t *testing.T) {
	d := NewDispatcher(1)
	defer d.Shutdown(context.Background())

	wantErr := errors.New("boom")
	task, _ := d.Submit("explain", func(ctx context.Context) error {
		return wantErr
	})

	<-task.Done()
	if !errors.Is(task.Err(), wantErr) {
		t.Errorf("Err() = %v, want %v", task.Err(), wantErr)
	}
}

func TestDispatcher_PanicRecovered(t *testing.T) {
	d := NewDispatcher(1)
	defer d.Shutdown(context.Background())

	task, _ := d.Submit("train", func(ctx context.Context) error {
		panic("unexpected")
	})

	<-task.Done()
	if task.Err() == nil {
		t.Error("Err() = nil, want panic error")
	}
}

// ========== 并发执行测试 ==========

func TestDispatcher_Concurrent(t *testing.T) {
	d := NewDispatcher(4)
	defer d.Shutdown(context.Background())

	var count atomic.Int32
	tasks := make([]*Task, 20)
	for i := range tasks {
		task, err := d.Submit("process", func(ctx context.Context) error {
			count.Add(1)
			return nil
		})
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		tasks[i] = task
	}

	for _, task := range tasks {
		<-task.Done()
	}
	if count.Load() != 20 {
		t.Errorf("executed %d tasks, want 20", count.Load())
	}
}

// 任务体内再提交（如训练完成后触发解释预热）在队列满时
// 不得阻塞 worker，也不得阻塞其他调用方的提交
func TestDispatcher_SubmitFromWorkerWithFullQueue(t *testing.T) {
	d := NewDispatcher(1) // 队列容量 4
	defer d.Shutdown(context.Background())

	var inner atomic.Int32
	outer, err := d.Submit("train", func(ctx context.Context) error {
		// 超出队列容量的内部提交
		for i := 0; i < 5; i++ {
			if _, err := d.Submit("explain", func(ctx context.Context) error {
				inner.Add(1)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	select {
	case <-outer.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("worker blocked submitting against a full queue")
	}

	// 外部提交此时也必须畅通
	extra, err := d.Submit("quality", func(ctx context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	select {
	case <-extra.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("external submit blocked behind worker-side submits")
	}

	deadline := time.Now().Add(5 * time.Second)
	for inner.Load() != 5 {
		if time.Now().After(deadline) {
			t.Fatalf("executed %d inner tasks, want 5", inner.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// ========== 关闭行为测试 ==========

func TestDispatcher_ShutdownRejectsNewTasks(t *testing.T) {
	d := NewDispatcher(1)
	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if _, err := d.Submit("train", func(ctx context.Context) error { return nil }); err == nil {
		t.Error("Submit() after Shutdown expected error, got nil")
	}
	// 重复关闭为空操作
	if err := d.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestDispatcher_ShutdownWaitsForRunning(t *testing.T) {
	d := NewDispatcher(1)

	release := make(chan struct{})
	task, _ := d.Submit("train", func(ctx context.Context) error {
		<-release
		return nil
	})

	go func() {
		time.Sleep(50 * time.Millisecond)
		close(release)
	}()

	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	select {
	case <-task.Done():
	default:
		t.Error("Shutdown returned before running task finished")
	}
}
