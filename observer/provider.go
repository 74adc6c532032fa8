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

// ObservedProvider wraps an engram.Provider with OTEL instrumentation and
// cost ledger accounting. inst may be nil when OTEL export is disabled; the
// ledger keeps recording either way.
type ObservedProvider struct {
	inner  engram.Provider
	inst   *Instruments
	ledger *Ledger
}

var _ engram.Provider = (*ObservedProvider)(nil)

// WrapProvider returns an instrumented provider that emits traces, metrics,
// and logs, and feeds the cost ledger.
func WrapProvider(inner engram.Provider, inst *Instruments, ledger *Ledger) *ObservedProvider {
	return &ObservedProvider{inner: inner, inst: inst, ledger: ledger}
}

func (o *ObservedProvider) Name() string  { return o.inner.Name() }
func (o *ObservedProvider) Model() string { return o.inner.Model() }

func (o *ObservedProvider) Chat(ctx context.Context, req engram.ChatRequest) (engram.ChatResponse, error) {
	var span trace.Span
	if o.inst != nil {
		ctx, span = o.inst.Tracer.Start(ctx, "llm.chat", trace.WithAttributes(
			AttrLLMModel.String(o.inner.Model()),
			AttrLLMProvider.String(o.inner.Name()),
		))
		defer span.End()
	}
	start := time.Now()

	resp, err := o.inner.Chat(ctx, req)

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
		o.ledger.Record(o.inner.Name(), o.inner.Model(),
			resp.Usage.PromptTokens, resp.Usage.CachedTokens, resp.Usage.CompletionTokens)
	}
	if o.inst != nil {
		o.record(ctx, span, status, durationMs, resp.Usage)
	}
	return resp, err
}

func (o *ObservedProvider) record(ctx context.Context, span trace.Span, status string, durationMs float64, usage engram.Usage) {
	model := o.inner.Model()
	cost := o.inst.Cost.Calculate(model, usage.PromptTokens, usage.CachedTokens, usage.CompletionTokens)

	attrs := metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		AttrLLMMethod.String("chat"),
	)

	span.SetAttributes(
		AttrTokensInput.Int(usage.PromptTokens),
		AttrTokensCached.Int(usage.CachedTokens),
		AttrTokensOutput.Int(usage.CompletionTokens),
		AttrCostUSD.Float64(cost),
	)

	o.inst.TokenUsage.Add(ctx, int64(usage.PromptTokens), metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		attribute.String("direction", "input"),
	))
	o.inst.TokenUsage.Add(ctx, int64(usage.CompletionTokens), metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		attribute.String("direction", "output"),
	))
	o.inst.CostTotal.Add(ctx, cost, attrs)
	o.inst.LLMRequests.Add(ctx, 1, metric.WithAttributes(
		AttrLLMModel.String(model),
		AttrLLMProvider.String(o.inner.Name()),
		AttrLLMMethod.String("chat"),
		attribute.String("status", status),
	))
	o.inst.LLMDuration.Record(ctx, durationMs, attrs)

	// Structured log
	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("llm call completed"))
	rec.AddAttributes(
		otellog.String("llm.model", model),
		otellog.String("llm.provider", o.inner.Name()),
		otellog.Int("llm.tokens.input", usage.PromptTokens),
		otellog.Int("llm.tokens.cached", usage.CachedTokens),
		otellog.Int("llm.tokens.output", usage.CompletionTokens),
		otellog.Float64("llm.cost_usd", cost),
		otellog.Float64("llm.duration_ms", durationMs),
		otellog.String("status", status),
	)
	o.inst.Logger.Emit(ctx, rec)
}
