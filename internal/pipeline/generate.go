package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ivlev/concept2video/internal/domain"
	"github.com/ivlev/concept2video/internal/provider"
	"github.com/ivlev/concept2video/internal/source"
)

// generate asks the provider for a graphic until one is accepted. Responses
// without a well-formed graphic and transient provider failures are retried
// GenerationRetries times with linear backoff.
func (x *execution) generate(ctx context.Context, concept string) (string, *source.Document, error) {
	name := x.opts.Provider
	if name == "" {
		name = x.o.Config.Provider.Default
	}
	attempts := 1 + x.o.Config.GenerationRetries

	var last error
	for i := 1; i <= attempts; i++ {
		if i > 1 {
			if err := sleep(ctx, time.Duration(i-1)*x.o.Config.RetryBackoff); err != nil {
				return "", nil, domain.Wrap(domain.KindCancelled, StepGenerate, err)
			}
		}
		x.job.Attempts = i

		text, err := x.gen.Generate(ctx, concept)
		x.o.Metrics.GenerationAttempt(name, err)
		if err == nil {
			svg, doc, aerr := x.accept(text)
			if aerr == nil {
				return svg, doc, nil
			}
			err = aerr
		}

		if ctx.Err() != nil || domain.KindOf(err) == domain.KindCancelled {
			return "", nil, domain.Wrap(domain.KindCancelled, StepGenerate, err)
		}
		if !retryable(err) {
			return "", nil, &domain.Error{Kind: domain.KindProvider, Op: StepGenerate, Message: name, Err: err}
		}
		x.log.Warn("generation attempt rejected", "provider", name, "attempt", i, "of", attempts, "error", err)
		last = err
	}

	return "", nil, &domain.Error{
		Kind:    domain.KindProvider,
		Op:      StepGenerate,
		Message: fmt.Sprintf("%s: no usable graphic after %d attempts", name, attempts),
		Err:     last,
	}
}

func retryable(err error) bool {
	return domain.KindOf(err) == domain.KindValidation || provider.IsRetryable(err)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
