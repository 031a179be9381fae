package classify

import (
	"context"
	"errors"
	"time"

	"ft-go/internal/ft"
)

// Chain tries each classifier in order and returns the first answer.
// A classifier reporting UnclassifiedError passes the file to the next one;
// any other error aborts the chain.
type Chain struct {
	classifiers []ft.Classifier
}

// NewChain builds a chain from the given classifiers.
func NewChain(classifiers ...ft.Classifier) *Chain {
	return &Chain{classifiers: classifiers}
}

func (c *Chain) Classify(ctx context.Context, path string) (ft.Classification, error) {
	for _, cl := range c.classifiers {
		result, err := cl.Classify(ctx, path)
		if err == nil {
			return result, nil
		}
		var unclassified *ft.UnclassifiedError
		if errors.As(err, &unclassified) {
			continue
		}
		return ft.Classification{}, err
	}
	return ft.Classification{}, &ft.UnclassifiedError{Path: path}
}

// WithTimeout bounds each classification call. The wrapped classifier runs
// in its own goroutine so even an implementation that ignores ctx cannot
// stall the caller's batch loop past the deadline.
type WithTimeout struct {
	inner   ft.Classifier
	timeout time.Duration
}

// NewWithTimeout wraps a classifier with a per-call deadline.
func NewWithTimeout(inner ft.Classifier, timeout time.Duration) *WithTimeout {
	return &WithTimeout{inner: inner, timeout: timeout}
}

func (w *WithTimeout) Classify(ctx context.Context, path string) (ft.Classification, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	type outcome struct {
		result ft.Classification
		err    error
	}
	ch := make(chan outcome, 1)
	go func() {
		result, err := w.inner.Classify(ctx, path)
		ch <- outcome{result, err}
	}()

	select {
	case o := <-ch:
		return o.result, o.err
	case <-ctx.Done():
		return ft.Classification{}, ctx.Err()
	}
}

var (
	_ ft.Classifier = (*Chain)(nil)
	_ ft.Classifier = (*WithTimeout)(nil)
)
