package analytics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestPrometheusEmitter_Track counts events per label set.
func TestPrometheusEmitter_Track(t *testing.T) {
	t.Parallel()

	e := NewPrometheusEmitter()

	e.Track("alarm_dismissed", Properties{PropertyMethod: "voice"})
	e.Track("alarm_dismissed", Properties{PropertyMethod: "voice"})
	e.Track("alarm_dismissed", Properties{PropertyMethod: "button"})
	e.Track("alarm_created", nil)

	require.InDelta(t, 2, testutil.ToFloat64(e.events.WithLabelValues("alarm_dismissed", "voice", "")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(e.events.WithLabelValues("alarm_dismissed", "button", "")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(e.events.WithLabelValues("alarm_created", "", "")), 0)
}

// TestPrometheusEmitter_Handler exposes counters and gauges.
func TestPrometheusEmitter_Handler(t *testing.T) {
	t.Parallel()

	e := NewPrometheusEmitter()
	e.Track("alarm_triggered", nil)
	e.RegisterGauge("alarm_engine_alarms", "Alarms in the working set", func() float64 { return 3 })

	server := httptest.NewServer(e.Handler())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL)
	require.NoError(t, err)

	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `alarm_engine_events_total{event="alarm_triggered",method="",source=""} 1`)
	require.Contains(t, string(body), "alarm_engine_alarms 3")
}

// TestRecorder counts tracked names.
func TestRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder

	r.Track("a", nil)
	r.Track("b", Properties{PropertySource: "engine"})
	r.Track("a", nil)

	require.Equal(t, 2, r.Count("a"))
	require.Len(t, r.Events(), 3)
	require.Equal(t, "engine", r.Events()[1].Props[PropertySource])
}
