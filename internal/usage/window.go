// Package usage computes token usage windows and costs for LLM sessions.
package usage

import (
	"sort"
	"time"
)

// DefaultWindow is the length of a rate-limit window.
const DefaultWindow = 5 * time.Hour

// Message is one billed assistant response.
type Message struct {
	Timestamp           time.Time
	Model               string
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
}

func (m Message) TotalTokens() int64 {
	return m.InputTokens + m.OutputTokens + m.CacheCreationTokens + m.CacheReadTokens
}

// Window aggregates the messages of one rate-limit window.
type Window struct {
	Start               time.Time `json:"start"`
	End                 time.Time `json:"end"`
	FirstMessage        time.Time `json:"first_message"`
	LastMessage         time.Time `json:"last_message"`
	Messages            int       `json:"messages"`
	InputTokens         int64     `json:"input_tokens"`
	OutputTokens        int64     `json:"output_tokens"`
	CacheCreationTokens int64     `json:"cache_creation_tokens"`
	CacheReadTokens     int64     `json:"cache_read_tokens"`
	TotalTokens         int64     `json:"total_tokens"`
	CostUSD             float64   `json:"cost_usd"`
}

func (w *Window) add(m Message, p Pricing) {
	if w.Messages == 0 {
		w.FirstMessage = m.Timestamp
	}
	w.LastMessage = m.Timestamp
	w.Messages++
	w.InputTokens += m.InputTokens
	w.OutputTokens += m.OutputTokens
	w.CacheCreationTokens += m.CacheCreationTokens
	w.CacheReadTokens += m.CacheReadTokens
	w.TotalTokens += m.TotalTokens()
	w.CostUSD = round6(w.CostUSD + p.Cost(m))
}

// Calculator splits message streams into fixed-length windows.
type Calculator struct {
	Length  time.Duration
	Pricing Pricing
	// TokenLimit is the plan limit per window; 0 means unknown.
	TokenLimit int64
}

func NewCalculator(length time.Duration, tokenLimit int64) *Calculator {
	if length <= 0 {
		length = DefaultWindow
	}
	return &Calculator{Length: length, Pricing: DefaultPricing, TokenLimit: tokenLimit}
}

// Windows returns the windows for msgs in chronological order. A window
// starts at the hour of its first message; the first message at or past
// start+Length opens the next one.
func (c *Calculator) Windows(msgs []Message) []Window {
	if len(msgs) == 0 {
		return nil
	}
	sorted := make([]Message, len(msgs))
	copy(sorted, msgs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var windows []Window
	var cur *Window
	for _, m := range sorted {
		if cur == nil || !m.Timestamp.Before(cur.End) {
			start := m.Timestamp.UTC().Truncate(time.Hour)
			windows = append(windows, Window{Start: start, End: start.Add(c.Length)})
			cur = &windows[len(windows)-1]
		}
		cur.add(m, c.Pricing)
	}
	return windows
}

// Status describes the window containing now.
type Status struct {
	Active              bool       `json:"active"`
	Start               *time.Time `json:"start"`
	ResetsAt            *time.Time `json:"resets_at"`
	RemainingSeconds    int64      `json:"remaining_seconds"`
	Messages            int        `json:"messages"`
	InputTokens         int64      `json:"input_tokens"`
	OutputTokens        int64      `json:"output_tokens"`
	CacheCreationTokens int64      `json:"cache_creation_tokens"`
	CacheReadTokens     int64      `json:"cache_read_tokens"`
	TotalTokens         int64      `json:"total_tokens"`
	CostUSD             float64    `json:"cost_usd"`
	BurnRatePerMinute   float64    `json:"burn_rate_per_minute"`
	ProjectedTokens     int64      `json:"projected_tokens"`
	TokenLimit          int64      `json:"token_limit"`
	PercentUsed         float64    `json:"percent_used"`
}

// Active reports the window covering now, if any.
func (c *Calculator) Active(msgs []Message, now time.Time) Status {
	st := Status{TokenLimit: c.TokenLimit}
	windows := c.Windows(msgs)
	if len(windows) == 0 {
		return st
	}
	w := windows[len(windows)-1]
	if now.Before(w.Start) || !now.Before(w.End) {
		return st
	}

	start, end := w.Start, w.End
	st.Active = true
	st.Start = &start
	st.ResetsAt = &end
	st.RemainingSeconds = int64(end.Sub(now).Seconds())
	st.Messages = w.Messages
	st.InputTokens = w.InputTokens
	st.OutputTokens = w.OutputTokens
	st.CacheCreationTokens = w.CacheCreationTokens
	st.CacheReadTokens = w.CacheReadTokens
	st.TotalTokens = w.TotalTokens
	st.CostUSD = w.CostUSD

	elapsed := now.Sub(w.FirstMessage).Minutes()
	if elapsed >= 1 {
		st.BurnRatePerMinute = round6(float64(w.TotalTokens) / elapsed)
	} else {
		st.BurnRatePerMinute = float64(w.TotalTokens)
	}
	st.ProjectedTokens = w.TotalTokens + int64(st.BurnRatePerMinute*end.Sub(now).Minutes())

	if c.TokenLimit > 0 {
		st.PercentUsed = round6(float64(w.TotalTokens) / float64(c.TokenLimit) * 100)
	}
	return st
}
