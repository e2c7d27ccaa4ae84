package concurrency

import (
	"context"
	"fmt"
	"math/rand"
)

// Task is one unit of work released by a Sequencer.
type Task func(ctx context.Context) error

// RunSequenced starts every task on its own goroutine, then releases them one at a time in
// a random order drawn from rng. Each task runs only after the previous one returned, so
// no two tasks ever overlap. The first error stops the sequence; unreleased tasks never run.
// It returns the order tasks were released in.
func RunSequenced(ctx context.Context, rng *rand.Rand, tasks ...Task) ([]int, error) {
	order := rng.Perm(len(tasks))

	turns := make([]chan struct{}, len(tasks))
	results := make(chan error)
	for i := range tasks {
		turns[i] = make(chan struct{})
	}

	for i, task := range tasks {
		turn := turns[i]
		task := task
		SafeGo(func() {
			if _, ok := <-turn; !ok {
				return
			}
			results <- task(ctx)
		}, func(r interface{}) {
			results <- &PanicError{Value: r}
		})
	}

	released := make([]int, 0, len(order))
	var err error
	next := 0
	for ; next < len(order); next++ {
		if err = ctx.Err(); err != nil {
			break
		}
		idx := order[next]
		turns[idx] <- struct{}{}
		released = append(released, idx)
		if err = <-results; err != nil {
			err = fmt.Errorf("task %d: %w", idx, err)
			next++
			break
		}
	}
	for _, idx := range order[next:] {
		close(turns[idx])
	}
	return released, err
}
