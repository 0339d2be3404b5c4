package build

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	metrics := NewMetrics()

	metrics.Record(Result{Class: ClassStylesheet, Source: "styles/a.scss", Duration: 10 * time.Millisecond})
	metrics.Record(Result{Class: ClassStylesheet, Source: "styles/b.scss", Duration: 30 * time.Millisecond, Err: errors.New("expected \"{\"")})
	metrics.Record(Result{Class: ClassTemplate, Source: "views/index.jade", Duration: 5 * time.Millisecond})

	snapshot := metrics.Snapshot()
	require.Len(t, snapshot, 2)

	styles := snapshot[ClassStylesheet]
	assert.Equal(t, int64(2), styles.Total)
	assert.Equal(t, int64(1), styles.Succeeded)
	assert.Equal(t, int64(1), styles.Failed)
	assert.Equal(t, 20*time.Millisecond, styles.AverageDuration())
	assert.Equal(t, "styles/b.scss", styles.LastSource)
	assert.Equal(t, `expected "{"`, styles.LastError)

	templates := snapshot[ClassTemplate]
	assert.Equal(t, int64(1), templates.Succeeded)
	assert.Empty(t, templates.LastError)
}

func TestMetricsSuccessClearsLastError(t *testing.T) {
	metrics := NewMetrics()

	metrics.Record(Result{Class: ClassScript, Err: errors.New("boom")})
	metrics.Record(Result{Class: ClassScript})

	assert.Empty(t, metrics.Snapshot()[ClassScript].LastError)
}

func TestMetricsSnapshotIsCopy(t *testing.T) {
	metrics := NewMetrics()
	metrics.Record(Result{Class: ClassScript})

	snapshot := metrics.Snapshot()
	metrics.Record(Result{Class: ClassScript})

	assert.Equal(t, int64(1), snapshot[ClassScript].Total)
	assert.Equal(t, int64(2), metrics.Snapshot()[ClassScript].Total)
}

func TestMetricsConcurrentRecord(t *testing.T) {
	metrics := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			class := Classes[i%len(Classes)]
			metrics.Record(Result{Class: class, Duration: time.Millisecond})
			_ = metrics.Snapshot()
		}(i)
	}
	wg.Wait()

	var total int64
	for _, cm := range metrics.Snapshot() {
		total += cm.Total
	}
	assert.Equal(t, int64(50), total)
}

func TestAverageDurationEmpty(t *testing.T) {
	assert.Equal(t, time.Duration(0), ClassMetrics{}.AverageDuration())
}
