package announce

import (
	"context"
	"errors"
)

type Noop struct{}

func (Noop) PublishResult(context.Context, string, Summary) error { return nil }

// Multi delivers to every sink and joins their errors.
type Multi []Sink

func (m Multi) PublishResult(ctx context.Context, eventID string, summary Summary) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.PublishResult(ctx, eventID, summary); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
