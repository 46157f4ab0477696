package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"rostersync/internal/logging"
	"rostersync/internal/mapping"
	"rostersync/internal/patron"
	"rostersync/internal/reports"
	"rostersync/internal/resolve"
	"rostersync/internal/roster"
	"rostersync/internal/services"
	"rostersync/internal/stage"
)

// LoadHandler runs the roster loader for LoadJob payloads.
type LoadHandler struct {
	loader *roster.Loader
}

// NewLoadHandler wraps loader.
func NewLoadHandler(loader *roster.Loader) *LoadHandler {
	return &LoadHandler{loader: loader}
}

// Handle returns *roster.LoadResult.
func (h *LoadHandler) Handle(ctx context.Context, job *stage.Job) (any, error) {
	payload, err := stage.PayloadAs[LoadJob](job)
	if err != nil {
		return nil, err
	}
	ctx = services.WithClient(ctx, payload.Client.NID())
	return h.loader.Load(ctx, payload.Path, payload.Client.Schema)
}

func (h *LoadHandler) HealthCheck(context.Context) stage.Health {
	if h == nil || h.loader == nil {
		return stage.Unhealthy("loader", "roster loader not configured")
	}
	return stage.Healthy("loader", "schemas: "+strings.Join(h.loader.Schemas(), ","))
}

// IngestHandler resolves, maps and writes one record.
type IngestHandler struct {
	resolver *resolve.Resolver
	mapper   *mapping.Mapper
	client   patron.Client
	logger   *slog.Logger
}

// NewIngestHandler constructs the handler.
func NewIngestHandler(resolver *resolve.Resolver, mapper *mapping.Mapper, client patron.Client, logger *slog.Logger) *IngestHandler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &IngestHandler{
		resolver: resolver,
		mapper:   mapper,
		client:   client,
		logger:   logging.NewComponentLogger(logger, "ingestor"),
	}
}

// Handle returns an Outcome. Upstream errors are returned so the orchestrator
// can retry them; every other result is an Outcome.
func (h *IngestHandler) Handle(ctx context.Context, job *stage.Job) (any, error) {
	payload, err := stage.PayloadAs[IngestJob](job)
	if err != nil {
		return nil, err
	}
	client := payload.Client
	rec := payload.Record
	ctx = services.WithClient(ctx, client.NID())
	logger := logging.WithContext(ctx, h.logger)
	key := client.PrimaryKey(rec.SourceID())

	res, err := h.resolver.Resolve(ctx, key, rec)
	if err != nil {
		return nil, err
	}
	out := Outcome{PrimaryKey: key, Record: rec}

	switch {
	case res.IsAmbiguous():
		out.Kind = reports.OutcomeAmbiguous
		out.Candidates = res.Ambiguous
		return out, nil

	case res.FoundIn == resolve.FoundNone:
		create, err := h.mapper.CreatePayload(key, rec, client.NewDefaults)
		if err != nil {
			return nil, err
		}
		created, err := h.client.Create(ctx, create)
		if err != nil {
			return nil, err
		}
		out.Kind = reports.OutcomeNew
		out.Identity = created
		out.Written = true
		logger.Debug("identity created", logging.String("primary_key", key))
		return out, nil
	}

	overlay, err := h.mapper.Overlay(client, key, rec, res.Identity)
	if err != nil {
		return nil, err
	}
	out.Identity = overlay.Identity
	if overlay.TooLong {
		out.Kind = reports.OutcomeDataTooLong
		out.Err = services.Wrap(services.ErrDataTooLong, "mapping", "overlay",
			"custom information "+overlay.TooLongCode+" exceeds the upstream limit", nil).Error()
		logger.Warn("overlay skipped",
			logging.String(logging.FieldEventType, "overlay_too_long"),
			logging.String(logging.FieldErrorHint, "trim the identity's custom information in the system-of-record"),
			logging.String("primary_key", key),
			logging.String("code", overlay.TooLongCode),
		)
		return out, nil
	}
	if err := h.client.Update(ctx, res.Identity.Key, overlay.Payload); err != nil {
		return nil, err
	}
	out.Kind = string(res.FoundIn)
	out.Written = true
	return out, nil
}

func (h *IngestHandler) HealthCheck(context.Context) stage.Health {
	if h == nil || h.client == nil || h.resolver == nil || h.mapper == nil {
		return stage.Unhealthy("ingestor", "system-of-record client not configured")
	}
	return stage.Healthy("ingestor", fmt.Sprintf("fuzzy search limit %d", h.resolver.SearchLimit()))
}
