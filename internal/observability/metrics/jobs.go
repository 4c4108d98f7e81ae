package metrics

import (
	"time"

	obserrors "github.com/o4o-platform/ai-gateway/internal/observability/errors"
	"github.com/o4o-platform/ai-gateway/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultNoop    = "noop"
)

// Transition names emitted on the job lifecycle counter.
const (
	TransitionDispatched = "dispatched"
	TransitionCompleted  = "completed"
	TransitionFailed     = "failed"
	TransitionRetried    = "retried"
	TransitionCanceled   = "canceled"
	TransitionDLQ        = "dlq"
)

// JobMetric captures details about a job lifecycle event for metric emission.
type JobMetric struct {
	Provider   string
	Model      string
	Transition string
	Result     string
	ErrorType  string
	Attempt    int
	Duration   time.Duration
	Tokens     int
	Err        error
}

// EmitJobLifecycle emits standardised job lifecycle metrics.
func EmitJobLifecycle(sink statsd.Sink, in JobMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"provider":   in.Provider,
		"model":      in.Model,
		"transition": in.Transition,
		"result":     in.Result,
	}
	if in.ErrorType != "" {
		tags["error_type"] = in.ErrorType
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("job.transition", 1, tags)

	if in.Duration > 0 {
		sink.Timing("job.duration", in.Duration, CloneTags(tags))
	}
	if in.Tokens > 0 {
		sink.Count("job.tokens", int64(in.Tokens), CloneTags(tags))
	}
}

// EmitQueueDepth records the current queue gauge values.
func EmitQueueDepth(sink statsd.Sink, queued, active int) {
	if sink == nil {
		return
	}
	sink.Gauge("queue.queued", float64(queued), nil)
	sink.Gauge("queue.active", float64(active), nil)
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
