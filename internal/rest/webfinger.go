package rest

import (
	"context"
	"errors"
	"time"

	"github.com/0dayfall/webfinger"
	"github.com/0dayfall/webfinger/internal/monitoring"
	"github.com/0dayfall/webfinger/internal/store"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("webfinger.rest")

// Lookup outcomes recorded in webfinger_requests_total.
const (
	StatusFound    = "found"
	StatusNotFound = "not_found"
	StatusError    = "error"
)

// StoreResolver answers WebFinger queries from a store.Store.
type StoreResolver struct {
	Data store.Store
	// Driver labels the lookup duration histogram.
	Driver  string
	Metrics *monitoring.Metrics
}

func (sr *StoreResolver) Resolve(ctx context.Context, req webfinger.Request) (webfinger.Response, error) {
	ctx, span := tracer.Start(ctx, "StoreResolver.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.String("webfinger.resource", req.Resource().String()),
		attribute.String("webfinger.store", sr.Driver),
	)

	start := time.Now()
	resp, err := sr.Data.Lookup(ctx, req.Resource())
	if sr.Metrics != nil {
		sr.Metrics.ObserveStoreLookup(sr.Driver, time.Since(start))
	}

	switch {
	case err == nil:
		sr.record(StatusFound)
		span.SetAttributes(attribute.Int("webfinger.links", len(resp.Links())))
		return resp, nil
	case errors.Is(err, webfinger.ErrResourceNotFound):
		sr.record(StatusNotFound)
		span.SetStatus(codes.Unset, "not found")
		return webfinger.Response{}, err
	default:
		sr.record(StatusError)
		span.RecordError(err)
		span.SetStatus(codes.Error, "lookup failed")
		return webfinger.Response{}, err
	}
}

func (sr *StoreResolver) record(status string) {
	if sr.Metrics != nil {
		sr.Metrics.RecordWebFingerRequest(status)
	}
}
