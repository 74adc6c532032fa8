package observer

import "context"

// PipelineMetrics implements the engine's Metrics interface on top of OTEL
// counters. A nil Inst makes every method a no-op.
type PipelineMetrics struct {
	Inst *Instruments
}

func (p *PipelineMetrics) FactsExtracted(ctx context.Context, n int) {
	if p.Inst != nil {
		p.Inst.FactsExtracted.Add(ctx, int64(n))
	}
}

func (p *PipelineMetrics) DedupHit(ctx context.Context) {
	if p.Inst != nil {
		p.Inst.DedupHits.Add(ctx, 1)
	}
}

func (p *PipelineMetrics) FactInserted(ctx context.Context) {
	if p.Inst != nil {
		p.Inst.FactsInserted.Add(ctx, 1)
	}
}

func (p *PipelineMetrics) Superseded(ctx context.Context, n int) {
	if p.Inst != nil {
		p.Inst.SupersededRows.Add(ctx, int64(n))
	}
}

func (p *PipelineMetrics) Condensed(ctx context.Context) {
	if p.Inst != nil {
		p.Inst.CondensedRows.Add(ctx, 1)
	}
}
