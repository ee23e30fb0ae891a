package attachment_service

import (
	"context"
	"errors"
	"time"
)

type locationKey struct{}

// WithLocation attaches a position fix read by the UI shell to ctx.
func WithLocation(ctx context.Context, loc Location) context.Context {
	return context.WithValue(ctx, locationKey{}, loc)
}

// ContextLocator reports the fix attached with WithLocation. Fixes older than
// the query's MaxAge are refused.
type ContextLocator struct {
	Now func() time.Time
}

func (l ContextLocator) CurrentLocation(ctx context.Context, options LocationOptions) (Location, error) {
	if err := ctx.Err(); err != nil {
		return Location{}, err
	}
	loc, ok := ctx.Value(locationKey{}).(Location)
	if !ok {
		return Location{}, errors.New("no position fix supplied")
	}

	now := time.Now
	if l.Now != nil {
		now = l.Now
	}
	if options.MaxAge > 0 && !loc.Timestamp.IsZero() && now().Sub(loc.Timestamp) > options.MaxAge {
		return Location{}, errors.New("position fix is stale")
	}
	return loc, nil
}
