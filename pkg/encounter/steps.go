package encounter

import (
	"context"
	"time"
)

// Step is one paced beat of presentation, such as revealing damage before
// the narrator's message.
type Step struct {
	Name  string
	Delay time.Duration // Wait before running the step
}

// Steps is an ordered reveal sequence. Game state never waits on it.
type Steps []Step

// Play runs do for every step in order, sleeping each step's delay first.
// It stops early with ctx's error when ctx is done.
func (s Steps) Play(ctx context.Context, do func(i int, st Step)) error {
	for i, st := range s {
		if st.Delay > 0 {
			t := time.NewTimer(st.Delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		do(i, st)
	}
	return nil
}

// Total is the sum of all delays.
func (s Steps) Total() time.Duration {
	var d time.Duration
	for _, st := range s {
		d += st.Delay
	}
	return d
}
