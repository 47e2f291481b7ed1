// Send pacing strategies. A Controller steps a publisher through a sequence
// of intervals, each naming a hard message count and a goal rate; the goal
// might not be hit exactly under receiver pacing, the count always is.
package pacing

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// One sending interval
type Interval interface {
	// Hard number of messages to send in this interval, not just a goal
	Messages() (count int64)

	// Goal rate in messages per second, rate.Inf for as-fast-as-possible
	Limit() (limit rate.Limit)
}

// Send Count messages aiming for PerSecond messages per second
type MessagesAtRate struct {
	Count     int64
	PerSecond float64
}

func (interval MessagesAtRate) Messages() (count int64) {
	count = interval.Count
	return
}

func (interval MessagesAtRate) Limit() (limit rate.Limit) {
	limit = rate.Limit(interval.PerSecond)
	return
}

// Send Count messages as fast as possible
type MessagesAtBurst struct {
	Count int64
}

func (interval MessagesAtBurst) Messages() (count int64) {
	count = interval.Count
	return
}

func (interval MessagesAtBurst) Limit() (limit rate.Limit) {
	limit = rate.Inf
	return
}

// Achieved outcome of one completed interval
type Result struct {
	Messages  int64
	Elapsed   time.Duration
	PerSecond float64
}

// Controller steps through intervals, gating each send on the current
// interval's limiter. Single sender goroutine.
type Controller struct {
	intervals []Interval
	index     int
	sent      int64
	limiter   *rate.Limiter
	started   time.Time
	results   []Result
}

// Controller constructor
func New(intervals ...Interval) (new *Controller, err error) {
	if len(intervals) == 0 {
		err = fmt.Errorf("at least one interval is required")
		return
	}
	for i, interval := range intervals {
		if interval.Messages() <= 0 {
			err = fmt.Errorf("interval %d has non-positive message count", i)
			return
		}
		if interval.Limit() <= 0 {
			err = fmt.Errorf("interval %d has non-positive rate", i)
			return
		}
	}

	new = &Controller{intervals: intervals}
	return
}

// Blocks until the next send slot. proceed is false once every interval has
// run to completion. Returns early with the context error on cancellation.
func (controller *Controller) Next(ctx context.Context) (proceed bool, err error) {
	if controller.index >= len(controller.intervals) {
		return
	}

	if controller.limiter == nil {
		controller.limiter = rate.NewLimiter(controller.intervals[controller.index].Limit(), 1)
		controller.started = time.Now()
		controller.sent = 0
	}

	err = controller.limiter.Wait(ctx)
	if err != nil {
		return
	}

	controller.sent++
	proceed = true

	if controller.sent >= controller.intervals[controller.index].Messages() {
		controller.finishInterval()
	}
	return
}

// Outcomes of the intervals completed so far
func (controller *Controller) Results() (results []Result) {
	results = controller.results
	return
}

// Messages still owed across all remaining intervals
func (controller *Controller) Remaining() (remaining int64) {
	for i := controller.index; i < len(controller.intervals); i++ {
		remaining += controller.intervals[i].Messages()
	}
	remaining -= controller.sent
	return
}

func (controller *Controller) finishInterval() {
	elapsed := time.Since(controller.started)

	perSecond := float64(controller.sent)
	if seconds := elapsed.Seconds(); seconds > 0 {
		perSecond = float64(controller.sent) / seconds
	}

	controller.results = append(controller.results, Result{
		Messages:  controller.sent,
		Elapsed:   elapsed,
		PerSecond: perSecond,
	})

	controller.index++
	controller.limiter = nil
	controller.sent = 0
}
