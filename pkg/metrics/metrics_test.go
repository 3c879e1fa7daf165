package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInterfaces(t *testing.T) {
	var _ ProbeMetrics = NoopMetrics{}
	var _ ProbeMetrics = &MemoryMetrics{}
	var _ ProbeMetrics = &PrometheusMetrics{}
}

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	assert.NotPanics(t, func() {
		m.RecordProbe("s1", "upload", "success", time.Second, 9.5)
		m.RecordRun("s1", false, time.Minute)
		m.RecordEvaluation("s1", "upload_speed", "overall", true)
		m.RecordInsufficientData("s1", "upload_speed", "overall")
		m.RecordPersistenceFailure("csv")
		m.SetActiveRuns(0)
	})
}

func TestMemoryMetrics_Probes(t *testing.T) {
	m := NewMemoryMetrics()
	m.RecordProbe("s1", "download", "success", time.Second, 95.5)
	m.RecordProbe("s1", "download", "success", time.Second, 97.0)
	m.RecordProbe("s1", "download", "timeout", time.Second, 0)

	assert.Equal(t, 2, m.ProbeCount("s1", "download", "success"))
	assert.Equal(t, 1, m.ProbeCount("s1", "download", "timeout"))
	assert.Equal(t, 0, m.ProbeCount("s2", "download", "success"))
	assert.Equal(t, []float64{95.5, 97.0}, m.Throughput("s1", "download"))
}

func TestMemoryMetrics_Runs(t *testing.T) {
	m := NewMemoryMetrics()
	m.RecordRun("s1", false, time.Minute)
	m.RecordRun("s1", true, time.Second)

	assert.Equal(t, 2, m.RunCount("s1"))
	assert.Equal(t, 1, m.PartialRunCount("s1"))
	assert.Len(t, m.durations["s1"], 2)
}

func TestMemoryMetrics_Evaluations(t *testing.T) {
	m := NewMemoryMetrics()
	m.RecordEvaluation("s1", "upload_speed", "overall", true)
	m.RecordEvaluation("s1", "upload_speed", "overall", false)
	m.RecordEvaluation("s1", "upload_speed", "overall", false)
	m.RecordInsufficientData("s1", "download_speed", "scenario")
	m.RecordPersistenceFailure("postgres")
	m.SetActiveRuns(3)

	assert.Equal(t, 1, m.EvaluationCount("s1", "upload_speed", "overall", true))
	assert.Equal(t, 2, m.EvaluationCount("s1", "upload_speed", "overall", false))
	assert.Equal(t, 1, m.InsufficientCount("s1", "download_speed", "scenario"))
	assert.Equal(t, 1, m.PersistenceFailures("postgres"))
	assert.Equal(t, 3, m.ActiveRuns())
}

func TestMemoryMetrics_Concurrent(t *testing.T) {
	m := NewMemoryMetrics()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordRun("s1", false, time.Second)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, m.RunCount("s1"))
}
