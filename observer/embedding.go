package observer

import (
	"context"
	"time"

	"github.com/nevindra/engram"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedEmbedding wraps an engram.EmbeddingProvider with OTEL
// instrumentation and cost ledger accounting. Embedding usage is estimated
// from text length since the embeddings endpoint reports only totals.
type ObservedEmbedding struct {
	inner  engram.EmbeddingProvider
	model  string
	inst   *Instruments
	ledger *Ledger
}

var _ engram.EmbeddingProvider = (*ObservedEmbedding)(nil)

// WrapEmbedding returns an instrumented embedding provider.
func WrapEmbedding(inner engram.EmbeddingProvider, model string, inst *Instruments, ledger *Ledger) *ObservedEmbedding {
	return &ObservedEmbedding{inner: inner, model: model, inst: inst, ledger: ledger}
}

func (o *ObservedEmbedding) Name() string    { return o.inner.Name() }
func (o *ObservedEmbedding) Dimensions() int { return o.inner.Dimensions() }

func (o *ObservedEmbedding) Embed(ctx context.Context, texts []string, role string) ([][]float32, error) {
	var span trace.Span
	if o.inst != nil {
		ctx, span = o.inst.Tracer.Start(ctx, "llm.embed", trace.WithAttributes(
			AttrLLMModel.String(o.model),
			AttrLLMProvider.String(o.inner.Name()),
			AttrEmbedTextCount.Int(len(texts)),
			AttrEmbedDimensions.Int(o.inner.Dimensions()),
			AttrEmbedRole.String(role),
		))
		defer span.End()
	}
	start := time.Now()

	result, err := o.inner.Embed(ctx, texts, role)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	if err != nil {
		status = "error"
		if span != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}

	if o.ledger != nil && err == nil {
		o.ledger.Record(o.inner.Name(), o.model, estimateTokens(texts), 0, 0)
	}
	if o.inst != nil {
		o.inst.EmbedRequests.Add(ctx, 1, metric.WithAttributes(
			AttrLLMModel.String(o.model),
			AttrLLMProvider.String(o.inner.Name()),
			attribute.String("status", status),
		))
		o.inst.EmbedDuration.Record(ctx, durationMs, metric.WithAttributes(
			AttrLLMModel.String(o.model),
			AttrLLMProvider.String(o.inner.Name()),
		))

		// Structured log
		var rec otellog.Record
		rec.SetSeverity(otellog.SeverityInfo)
		rec.SetBody(otellog.StringValue("embedding completed"))
		rec.AddAttributes(
			otellog.String("llm.model", o.model),
			otellog.String("llm.provider", o.inner.Name()),
			otellog.Int("llm.embed.text_count", len(texts)),
			otellog.Float64("llm.duration_ms", durationMs),
			otellog.String("status", status),
		)
		o.inst.Logger.Emit(ctx, rec)
	}

	return result, err
}

// estimateTokens approximates token count at four characters per token.
func estimateTokens(texts []string) int {
	chars := 0
	for _, t := range texts {
		chars += len(t)
	}
	return chars / 4
}
