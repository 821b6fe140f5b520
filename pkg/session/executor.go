package session

import "sync"

// Executor schedules session tasks.
type Executor interface {
	Go(task func())
}

// ExecutorFunc adapts a function to an Executor.
type ExecutorFunc func(task func())

// Go calls f(task).
func (f ExecutorFunc) Go(task func()) {
	f(task)
}

// Inline runs every task on the calling goroutine. Tests use it to drive a
// session to completion before Start returns.
var Inline Executor = ExecutorFunc(func(task func()) { task() })

// Group runs each task on its own goroutine and can wait for all of them.
type Group struct {
	wg sync.WaitGroup
}

// Go runs task on a new goroutine.
func (g *Group) Go(task func()) {
	g.wg.Go(task)
}

// Wait blocks until every task started with Go has returned.
func (g *Group) Wait() {
	g.wg.Wait()
}
