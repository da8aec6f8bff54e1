package screening

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

const (
	defaultParallelThreshold = 4096
	defaultChunkSize         = 1024
)

// ClassifyOne tags a single cleaned identifier. It is a total function: any
// string gets a result.
func ClassifyOne(identifier string) Result {
	violations := Violations(identifier)
	status := StatusValid
	if len(violations) > 0 {
		status = StatusInvalid
	}
	return Result{
		Identifier: identifier,
		Status:     status,
		Violations: violations,
	}
}

// Classify tags every cleaned identifier. The output has exactly one result
// per input entry, in input order.
func Classify(cleaned []string) Results {
	out := make(Results, len(cleaned))
	for i, id := range cleaned {
		out[i] = ClassifyOne(id)
	}
	return out
}

// Classifier classifies large inputs across a bounded pool of goroutines.
// Entries are independent, so chunks are evaluated in any order and written
// back by index.
type Classifier struct {
	workers   int
	chunkSize int
	threshold int
}

type ClassifierOption func(*Classifier)

// WithWorkers bounds the number of concurrent chunks. Values below one fall
// back to GOMAXPROCS.
func WithWorkers(n int) ClassifierOption {
	return func(c *Classifier) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithChunkSize sets how many identifiers each goroutine handles at a time.
func WithChunkSize(n int) ClassifierOption {
	return func(c *Classifier) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithParallelThreshold sets the input size below which classification runs
// on the calling goroutine.
func WithParallelThreshold(n int) ClassifierOption {
	return func(c *Classifier) {
		if n >= 0 {
			c.threshold = n
		}
	}
}

func NewClassifier(opts ...ClassifierOption) *Classifier {
	c := &Classifier{
		workers:   runtime.GOMAXPROCS(0),
		chunkSize: defaultChunkSize,
		threshold: defaultParallelThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Classify behaves like the package-level Classify. It returns early with the
// context error if ctx is cancelled while chunks are still pending.
func (c *Classifier) Classify(ctx context.Context, cleaned []string) (Results, error) {
	if len(cleaned) < c.threshold || c.workers == 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return Classify(cleaned), nil
	}

	out := make(Results, len(cleaned))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)

	for start := 0; start < len(cleaned); start += c.chunkSize {
		end := min(start+c.chunkSize, len(cleaned))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				out[i] = ClassifyOne(cleaned[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
