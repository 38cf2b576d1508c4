package camunda

import (
	"strings"
	"testing"

	"admissions-lifecycle/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/commands"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// nopJobClient hands out nil commands; the handlers below never send them.
type nopJobClient struct{}

func (nopJobClient) NewCompleteJobCommand() commands.CompleteJobCommandStep1 { return nil }
func (nopJobClient) NewFailJobCommand() commands.FailJobCommandStep1         { return nil }
func (nopJobClient) NewThrowErrorCommand() commands.ThrowErrorCommandStep1   { return nil }

func jobOutcomes(t *testing.T, reg *promclient.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := map[string]float64{}
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "jobs_processed") {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "status" {
					out[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	return out
}

func TestInstrument_RecordsJobOutcome(t *testing.T) {
	reg := promclient.NewRegistry()
	obs := observability.NewWithRegisterer("camunda-test", reg)
	defer obs.Shutdown()

	run := func(handler HandlerFunc) {
		Instrument("application-decide", handler, obs)(nopJobClient{}, entities.Job{})
	}
	run(func(c worker.JobClient, _ entities.Job) { c.NewCompleteJobCommand() })
	run(func(c worker.JobClient, _ entities.Job) { c.NewCompleteJobCommand() })
	run(func(c worker.JobClient, _ entities.Job) { c.NewFailJobCommand() })
	run(func(c worker.JobClient, _ entities.Job) { c.NewThrowErrorCommand() })
	run(func(worker.JobClient, entities.Job) {})

	assert.Equal(t, map[string]float64{
		OutcomeCompleted:  2,
		OutcomeFailed:     1,
		OutcomeBPMNError:  1,
		OutcomeUnanswered: 1,
	}, jobOutcomes(t, reg))
}
