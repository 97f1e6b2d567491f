package insights

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Span is one chunk of a batch: items [Start, End) at position Batch.
type Span struct {
	Batch      int
	Start, End int
}

// Chunks partitions n items into consecutive spans of at most size items.
func Chunks(n, size int) []Span {
	if size <= 0 {
		size = DefaultChunkSize
	}
	var out []Span
	for start, b := 0, 0; start < n; start, b = start+size, b+1 {
		end := start + size
		if end > n {
			end = n
		}
		out = append(out, Span{Batch: b, Start: start, End: end})
	}
	return out
}

// eachChunk calls fn for every chunk in order, holding a fixed pause between
// the end of one chunk and the start of the next. It never stops early:
// after cancellation fn still runs so every item ends up with a record.
func eachChunk(ctx context.Context, n, size int, pause time.Duration, fn func(s Span)) {
	var gap *rate.Limiter
	for _, s := range Chunks(n, size) {
		if gap != nil && ctx.Err() == nil {
			_ = gap.Wait(ctx)
		}
		fn(s)
		if pause > 0 {
			// drained on creation so Wait blocks a full pause from here
			gap = rate.NewLimiter(rate.Every(pause), 1)
			gap.Allow()
		}
	}
}
