package server

import (
	"context"
	"sync"
	"time"

	"github.com/realtime-sync/syncdemo/internal/client"
)

// dashboardSource is one upstream feeding the dashboard. delay is its
// relative latency; the configured dashboard delay scales it.
type dashboardSource struct {
	name  string
	delay float64
	fill  func(d *client.Dashboard)
}

var dashboardSources = []dashboardSource{
	{"weather", 1.0, func(d *client.Dashboard) {
		d.Weather = client.Weather{Temperature: 22, Humidity: 65, Condition: "sunny"}
	}},
	{"news", 1.5, func(d *client.Dashboard) {
		d.News = client.News{Headlines: []string{"Tech News 1", "Tech News 2", "Tech News 3"}}
	}},
	{"stocks", 0.8, func(d *client.Dashboard) {
		d.Stocks = map[string]float64{"AAPL": 150.25, "GOOGL": 2750.80, "TSLA": 245.67}
	}},
	{"crypto", 1.2, func(d *client.Dashboard) {
		d.Crypto = map[string]float64{"BTC": 45000, "ETH": 3200, "ADA": 1.25}
	}},
}

// gatherDashboard queries every source concurrently, so the reply takes as
// long as the slowest one.
func gatherDashboard(ctx context.Context, base time.Duration, now func() time.Time) (*client.Dashboard, error) {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out client.Dashboard
	)
	for _, src := range dashboardSources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			t := time.NewTimer(time.Duration(float64(base) * src.delay))
			defer t.Stop()
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			mu.Lock()
			src.fill(&out)
			mu.Unlock()
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out.Timestamp = now().Format(naiveISO)
	return &out, nil
}
