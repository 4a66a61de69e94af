// Package task 提供后台任务调度
package task

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task 一次已提交的后台任务
type Task struct {
	ID   string
	Kind string

	mu       sync.Mutex
	err      error
	done     chan struct{}
	started  time.Time
	finished time.Time
}

// Done 任务完成时关闭
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Err 返回任务错误，须在 Done 关闭后调用
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Elapsed 返回任务执行耗时
func (t *Task) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.finished.IsZero() {
		return 0
	}
	return t.finished.Sub(t.started)
}

type job struct {
	task *Task
	fn   func(ctx context.Context) error
}

// Dispatcher 固定并发度的后台任务调度器
type Dispatcher struct {
	jobs     chan job
	wg       sync.WaitGroup
	inflight sync.WaitGroup // 尚未进入队列的提交
	ctx      context.Context
	cancel   context.CancelFunc
	closeMu  sync.Mutex
	closed   bool
}

// NewDispatcher 创建并启动调度器
func NewDispatcher(workers int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		jobs:   make(chan job, workers*4),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	return d
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for j := range d.jobs {
		j.task.mu.Lock()
		j.task.started = time.Now()
		j.task.mu.Unlock()

		err := d.run(j)

		j.task.mu.Lock()
		j.task.err = err
		j.task.finished = time.Now()
		j.task.mu.Unlock()
		close(j.task.done)

		if err != nil {
			log.Printf("task %s (%s) failed: %v", j.task.ID, j.task.Kind, err)
		} else {
			log.Printf("task %s (%s) completed in %s", j.task.ID, j.task.Kind, j.task.Elapsed())
		}
	}
}

// run 执行任务体，panic 转换为错误
func (d *Dispatcher) run(j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return j.fn(d.ctx)
}

// Submit 提交后台任务，返回可观察完成的 Task。
// 入队不持锁，队列满时经后台协程投递：任务体内再提交
// （训练完成后预热解释）不会把 worker 堵死在队列上
func (d *Dispatcher) Submit(kind string, fn func(ctx context.Context) error) (*Task, error) {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return nil, fmt.Errorf("dispatcher is shut down")
	}
	d.inflight.Add(1)
	d.closeMu.Unlock()

	t := &Task{
		ID:   "task_" + uuid.New().String()[:8],
		Kind: kind,
		done: make(chan struct{}),
	}
	j := job{task: t, fn: fn}
	select {
	case d.jobs <- j:
		d.inflight.Done()
	default:
		go func() {
			d.jobs <- j
			d.inflight.Done()
		}()
	}
	return t, nil
}

// Shutdown 停止接收新任务并等待在执行的任务结束。
// 先等所有在途提交落入队列再关闭通道，避免向已关闭通道发送
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return nil
	}
	d.closed = true
	d.closeMu.Unlock()

	finished := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(d.jobs)
		d.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		return ctx.Err()
	}
}
