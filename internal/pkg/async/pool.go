// Package async runs a set of named tasks over a bounded worker pool
// and collects their results by name. It backs the fan-out of the
// independent queries that make up a stats snapshot.
package async

import (
	"context"
	"sync"
)

// Task is one unit of work, identified by a name unique within a batch.
type Task struct {
	Name    string
	Execute func() (interface{}, error)
}

// Result pairs a task's name with what its Execute returned.
type Result struct {
	Name string
	Data interface{}
	Err  error
}

// Pool fans a batch of tasks out over a fixed number of workers.
type Pool struct {
	workerCount int
	tasks       chan Task
	results     chan Result
}

func NewPool(workerCount int) *Pool {
	return &Pool{
		workerCount: workerCount,
		tasks:       make(chan Task),
		results:     make(chan Result),
	}
}

func (p *Pool) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case task, ok := <-p.tasks:
			if !ok {
				return
			}
			data, err := task.Execute()
			p.results <- Result{Name: task.Name, Data: data, Err: err}
		case <-ctx.Done():
			return
		}
	}
}

// Execute runs every task and returns the results keyed by task name.
// When the context is cancelled mid-batch the map holds only the
// results collected so far, so callers must check its length before
// trusting it. A Pool is single use.
func (p *Pool) Execute(ctx context.Context, tasks []Task) map[string]Result {
	var wg sync.WaitGroup
	for i := 0; i < p.workerCount; i++ {
		wg.Add(1)
		go p.worker(ctx, &wg)
	}

	go func() {
		defer close(p.tasks)
		for _, task := range tasks {
			select {
			case p.tasks <- task:
			case <-ctx.Done():
				return
			}
		}
	}()

	results := make(map[string]Result, len(tasks))
	for range tasks {
		select {
		case result := <-p.results:
			results[result.Name] = result
		case <-ctx.Done():
			return results
		}
	}

	wg.Wait()
	close(p.results)

	return results
}
