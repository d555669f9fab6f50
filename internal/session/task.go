package session

import "context"

// Outcome 是异步操作的结果。Discarded 为 true 表示结果到达时会话已关闭，
// 结果没有写回工作副本，调用方也不应再使用它。
type Outcome[T any] struct {
	Value     T
	Err       error
	Discarded bool
}

// OK 报告操作成功且结果已生效。
func (o Outcome[T]) OK() bool {
	return o.Err == nil && !o.Discarded
}

// Task 代表一个进行中的异步操作，只会被解决一次。
type Task[T any] struct {
	done chan struct{}
	out  Outcome[T]
}

func newTask[T any]() *Task[T] {
	return &Task[T]{done: make(chan struct{})}
}

func (t *Task[T]) resolve(o Outcome[T]) {
	t.out = o
	close(t.done)
}

// Done 在任务解决后关闭。
func (t *Task[T]) Done() <-chan struct{} {
	return t.done
}

// Wait 阻塞到任务解决或 ctx 结束。ctx 结束不会取消任务本身。
func (t *Task[T]) Wait(ctx context.Context) (Outcome[T], error) {
	select {
	case <-t.done:
		return t.out, nil
	case <-ctx.Done():
		return Outcome[T]{}, ctx.Err()
	}
}

// Poll 非阻塞地读取结果。
func (t *Task[T]) Poll() (Outcome[T], bool) {
	select {
	case <-t.done:
		return t.out, true
	default:
		return Outcome[T]{}, false
	}
}
