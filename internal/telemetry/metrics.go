package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter     metric.Int64Counter
	RequestDuration    metric.Float64Histogram
	DocumentsProcessed metric.Int64Counter
	StageDuration      metric.Float64Histogram
	ChunksEmbedded     metric.Int64Counter
	ChunksRejected     metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("knowledgebase-platform")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsProcessed, err := meter.Int64Counter(
		"ingestion.documents.total",
		metric.WithDescription("Documents that finished ingestion, by outcome"),
	)
	if err != nil {
		return nil, err
	}

	stageDuration, err := meter.Float64Histogram(
		"ingestion.stage.duration",
		metric.WithDescription("Per-stage ingestion duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksEmbedded, err := meter.Int64Counter(
		"ingestion.chunks.embedded",
		metric.WithDescription("Chunks successfully embedded and indexed"),
	)
	if err != nil {
		return nil, err
	}

	chunksRejected, err := meter.Int64Counter(
		"ingestion.chunks.rejected",
		metric.WithDescription("Chunks skipped due to embedding failure or validation"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:     requestCounter,
		RequestDuration:    requestDuration,
		DocumentsProcessed: documentsProcessed,
		StageDuration:      stageDuration,
		ChunksEmbedded:     chunksEmbedded,
		ChunksRejected:     chunksRejected,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordDocumentProcessed records one finished ingestion job
func (m *Metrics) RecordDocumentProcessed(status, mimeType string) {
	attrs := []attribute.KeyValue{
		attribute.String("ingestion.status", status),
		attribute.String("document.mime_type", mimeType),
	}

	m.DocumentsProcessed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordStageDuration records how long one pipeline stage took
func (m *Metrics) RecordStageDuration(stage string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("ingestion.stage", stage),
	}

	m.StageDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordChunkOutcomes records embedding survivor/reject counts for one document
func (m *Metrics) RecordChunkOutcomes(embedded, rejected int64) {
	if embedded > 0 {
		m.ChunksEmbedded.Add(context.Background(), embedded)
	}
	if rejected > 0 {
		m.ChunksRejected.Add(context.Background(), rejected)
	}
}
