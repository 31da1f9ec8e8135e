package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/entrhq/drover/pkg/types"
)

// Metrics derives prometheus series from the task event stream. It
// implements task.Reporter, so wiring it into the engine's reporter chain is
// enough to count every task the process runs, however it was started.
type Metrics struct {
	tasks     *prometheus.CounterVec
	actions   *prometheus.CounterVec
	retries   prometheus.Counter
	durations prometheus.Histogram

	mu     sync.Mutex
	starts map[string]time.Time
}

// NewMetrics registers the drover metric family with reg, defaulting to the
// global registerer when reg is nil. Collectors that are already registered
// are reused, so multiple servers in one process share series.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drover",
			Name:      "tasks_total",
			Help:      "Tasks that reached a terminal state, labelled by status.",
		}, []string{"status"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "drover",
			Name:      "actions_total",
			Help:      "Browser actions executed, labelled by action type.",
		}, []string{"type"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "drover",
			Name:      "translation_retries_total",
			Help:      "Model translation attempts that failed and were retried.",
		}),
		durations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "drover",
			Name:      "task_duration_seconds",
			Help:      "Wall-clock seconds from a task's first observed event to its terminal event.",
			Buckets:   prometheus.DefBuckets,
		}),
		starts: make(map[string]time.Time),
	}
	if err := reg.Register(m.tasks); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				m.tasks = existing
			} else {
				return nil, fmt.Errorf("failed to register task counter: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to register task counter: %w", err)
		}
	}
	if err := reg.Register(m.actions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				m.actions = existing
			} else {
				return nil, fmt.Errorf("failed to register action counter: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to register action counter: %w", err)
		}
	}
	if err := reg.Register(m.retries); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				m.retries = existing
			} else {
				return nil, fmt.Errorf("failed to register retry counter: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to register retry counter: %w", err)
		}
	}
	if err := reg.Register(m.durations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				m.durations = existing
			} else {
				return nil, fmt.Errorf("failed to register duration histogram: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to register duration histogram: %w", err)
		}
	}
	return m, nil
}

// Report implements task.Reporter.
func (m *Metrics) Report(event *types.Event) {
	if event == nil || event.Data == nil {
		return
	}
	m.markStart(event)
	switch event.Type {
	case types.EventTypeAction:
		if event.Data.Action != nil {
			m.actions.WithLabelValues(string(event.Data.Action.Type)).Inc()
		}
	case types.EventTypeStatus:
		if event.Data.Status.Terminal() {
			m.finish(event.TaskID, string(event.Data.Status))
		}
	case types.EventTypeError:
		if event.Data.Terminal {
			m.finish(event.TaskID, terminalStatusForKind(event.Data.Kind))
		} else if event.Data.Kind == types.ErrorKindTranslation {
			m.retries.Inc()
		}
	}
}

// terminalStatusForKind maps a terminal error event onto the handle status
// the executor records alongside it: budget exhaustion aborts, everything
// else fails.
func terminalStatusForKind(kind types.ErrorKind) string {
	if kind == types.ErrorKindBudgetExceeded {
		return string(types.TaskStatusAborted)
	}
	return string(types.TaskStatusFailed)
}

func (m *Metrics) markStart(event *types.Event) {
	if event.TaskID == "" {
		return
	}
	m.mu.Lock()
	if _, ok := m.starts[event.TaskID]; !ok {
		m.starts[event.TaskID] = event.At
	}
	m.mu.Unlock()
}

func (m *Metrics) finish(taskID, status string) {
	m.tasks.WithLabelValues(status).Inc()
	if taskID == "" {
		return
	}
	m.mu.Lock()
	start, ok := m.starts[taskID]
	delete(m.starts, taskID)
	m.mu.Unlock()
	if ok {
		m.durations.Observe(time.Since(start).Seconds())
	}
}
