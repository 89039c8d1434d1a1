package llmcall

import (
	"context"
	"sort"
	"time"
)

// Summary provides a summary of a set of calls.
type Summary struct {
	Count          int           `json:"count"`
	TotalCostUSD   float64       `json:"total_cost_usd"`
	TotalTokens    int           `json:"total_tokens"`
	TotalTime      time.Duration `json:"total_time"`
	SuccessCount   int           `json:"success_count"`
	ErrorCount     int           `json:"error_count"`
	AvgCostUSD     float64       `json:"avg_cost_usd"`
	AvgTokens      float64       `json:"avg_tokens"`
	AvgTimeSeconds float64       `json:"avg_time_seconds"`
}

// Summarize aggregates calls into a Summary.
func Summarize(calls []Call) *Summary {
	s := &Summary{Count: len(calls)}
	for _, c := range calls {
		s.TotalCostUSD += c.CostUSD
		s.TotalTokens += c.InputTokens + c.OutputTokens
		s.TotalTime += time.Duration(c.LatencyMs) * time.Millisecond
		if c.Success {
			s.SuccessCount++
		} else {
			s.ErrorCount++
		}
	}
	if s.Count > 0 {
		s.AvgCostUSD = s.TotalCostUSD / float64(s.Count)
		s.AvgTokens = float64(s.TotalTokens) / float64(s.Count)
		s.AvgTimeSeconds = s.TotalTime.Seconds() / float64(s.Count)
	}
	return s
}

// DetailedStats provides latency percentiles and token breakdowns.
type DetailedStats struct {
	Count        int `json:"count"`
	SuccessCount int `json:"success_count"`
	ErrorCount   int `json:"error_count"`

	TotalCostUSD float64 `json:"total_cost_usd"`
	AvgCostUSD   float64 `json:"avg_cost_usd"`

	// Latency percentiles (seconds)
	LatencyP50 float64 `json:"latency_p50"`
	LatencyP95 float64 `json:"latency_p95"`
	LatencyP99 float64 `json:"latency_p99"`
	LatencyAvg float64 `json:"latency_avg"`
	LatencyMin float64 `json:"latency_min"`
	LatencyMax float64 `json:"latency_max"`

	TotalInputTokens  int `json:"total_input_tokens"`
	TotalOutputTokens int `json:"total_output_tokens"`
	TotalTokens       int `json:"total_tokens"`

	AvgInputTokens  float64 `json:"avg_input_tokens"`
	AvgOutputTokens float64 `json:"avg_output_tokens"`
	AvgTotalTokens  float64 `json:"avg_total_tokens"`
}

// Detail computes DetailedStats over calls.
func Detail(calls []Call) *DetailedStats {
	stats := &DetailedStats{Count: len(calls)}
	if len(calls) == 0 {
		return stats
	}

	var latencies []float64
	for _, c := range calls {
		stats.TotalCostUSD += c.CostUSD
		if c.Success {
			stats.SuccessCount++
		} else {
			stats.ErrorCount++
		}
		stats.TotalInputTokens += c.InputTokens
		stats.TotalOutputTokens += c.OutputTokens
		if c.LatencyMs > 0 {
			latencies = append(latencies, float64(c.LatencyMs)/1000)
		}
	}
	stats.TotalTokens = stats.TotalInputTokens + stats.TotalOutputTokens

	count := float64(stats.Count)
	stats.AvgCostUSD = stats.TotalCostUSD / count
	stats.AvgInputTokens = float64(stats.TotalInputTokens) / count
	stats.AvgOutputTokens = float64(stats.TotalOutputTokens) / count
	stats.AvgTotalTokens = float64(stats.TotalTokens) / count

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		stats.LatencyMin = latencies[0]
		stats.LatencyMax = latencies[len(latencies)-1]

		var sum float64
		for _, l := range latencies {
			sum += l
		}
		stats.LatencyAvg = sum / float64(len(latencies))

		stats.LatencyP50 = percentile(latencies, 50)
		stats.LatencyP95 = percentile(latencies, 95)
		stats.LatencyP99 = percentile(latencies, 99)
	}
	return stats
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	n := float64(len(sorted))
	idx := (p / 100.0) * (n - 1)

	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// PromptStats returns detailed stats grouped by prompt key for calls
// matching the filter.
func (s *Store) PromptStats(ctx context.Context, filter QueryFilter) (map[string]*DetailedStats, error) {
	filter.Limit, filter.Offset = 0, 0
	calls, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string][]Call)
	for _, c := range calls {
		byKey[c.PromptKey] = append(byKey[c.PromptKey], c)
	}
	out := make(map[string]*DetailedStats, len(byKey))
	for k, cs := range byKey {
		out[k] = Detail(cs)
	}
	return out, nil
}
