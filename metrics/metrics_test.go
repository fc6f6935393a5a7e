package metrics_test

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/pulse/metrics"
)

func TestPipeline_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.NewPipeline(reg)

	m.Execution("place_bet", metrics.ResultSuccess)
	m.Execution("place_bet", metrics.ResultSuccess)
	m.Execution("claim", "contract")
	m.Query("get_round", metrics.ResultSuccess)
	m.PollAttempt()
	m.PollAttempt()
	m.PollAttempt()
	m.Finality(2 * time.Second)

	n, err := testutil.GatherAndCount(reg, "pulse_pipeline_executions_total", "pulse_pipeline_poll_attempts_total")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	expected := `
# HELP pulse_pipeline_poll_attempts_total Transaction status queries issued while awaiting finality
# TYPE pulse_pipeline_poll_attempts_total counter
pulse_pipeline_poll_attempts_total 3
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pulse_pipeline_poll_attempts_total"))

	expected = `
# HELP pulse_pipeline_executions_total State-mutating pipeline executions by call and result
# TYPE pulse_pipeline_executions_total counter
pulse_pipeline_executions_total{call="claim",result="contract"} 1
pulse_pipeline_executions_total{call="place_bet",result="success"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "pulse_pipeline_executions_total"))
	n, err = testutil.GatherAndCount(reg, "pulse_pipeline_finality_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPipeline_NilIsNoop(t *testing.T) {
	var m *metrics.Pipeline
	m.Execution("x", "y")
	m.Query("x", "y")
	m.PollAttempt()
	m.Finality(time.Second)
}

func TestPipeline_Unregistered(t *testing.T) {
	m := metrics.NewPipeline(nil)
	m.PollAttempt()
}
