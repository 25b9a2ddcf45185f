// Package usage meters generation calls: token estimates, latency, and a
// derived dollar cost per model tier.
//
// Records live in a fixed-capacity in-memory ring buffer; once full, the
// oldest record is dropped. Nothing is persisted - ExportSnapshot exists
// for offline analysis, not durability.
//
// Token counts are estimated as ceil(len/4), a documented approximation
// rather than a real tokenizer. Cost is computed from a static per-model
// price table; cached calls always cost zero.
//
// # Basic Usage
//
//	ledger, err := usage.New(usage.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//
//	ledger.Track(usage.TrackRequest{
//		Model:    "gemini-2.5-flash",
//		Prompt:   prompt,
//		Response: resp.Text,
//		Latency:  elapsed,
//	})
//
//	m := ledger.Metrics() // totals, average latency, cache-hit rate, per-model
package usage
