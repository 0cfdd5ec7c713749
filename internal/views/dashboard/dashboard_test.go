package dashboard

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/realtime-sync/syncdemo/internal/client"
	"github.com/realtime-sync/syncdemo/internal/livesync"
)

func TestGaugeClamps(t *testing.T) {
	for _, pct := range []float64{-5, 0, 42, 100, 180} {
		g := gauge("CPU", pct)
		if n := strings.Count(g, "█") + strings.Count(g, "░"); n != gaugeWidth {
			t.Errorf("gauge(%v) has %d cells, want %d", pct, n, gaugeWidth)
		}
	}
}

func TestViewMetrics(t *testing.T) {
	m := New()
	if v := m.View(); !strings.Contains(v, "Press m") {
		t.Error("view should hint at starting the metrics stream")
	}
	m.SetMetric(livesync.MetricSample{CPU: 55.5, Memory: 61, Disk: 70, ActiveConnections: 3, RequestsPerMinute: 90})
	v := m.View()
	for _, want := range []string{"55.5%", "Req/min 90", "1 samples"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}
}

func TestViewAggregate(t *testing.T) {
	m := New()
	m.Loading = true
	if v := m.View(); !strings.Contains(v, "Loading") {
		t.Error("view should show loading")
	}

	m.SetDashboard(&client.Dashboard{
		Weather: client.Weather{Temperature: 22, Humidity: 65, Condition: "sunny"},
		News:    client.News{Headlines: []string{"Tech News 1"}},
		Stocks:  map[string]float64{"TSLA": 245.67, "AAPL": 150.25},
		Crypto:  map[string]float64{"BTC": 45000},
	}, 1500*time.Millisecond)

	v := m.View()
	for _, want := range []string{"22°C sunny", "AAPL 150.25  TSLA 245.67", "BTC 45000.00", "Tech News 1", "1.5s"} {
		if !strings.Contains(v, want) {
			t.Errorf("view should contain %q", want)
		}
	}

	m.Err = errors.New("GET /dashboard: 504")
	if v := m.View(); !strings.Contains(v, "504") {
		t.Error("view should show the error")
	}
}
