package engine

import (
	"log/slog"
	"os/exec"
	"sync/atomic"
	"time"

	"github.com/mqtt-tools/mqttbridge/internal/journal"
	"github.com/mqtt-tools/mqttbridge/internal/rules"
	"github.com/mqtt-tools/mqttbridge/internal/telemetry"
	"github.com/mqtt-tools/mqttbridge/pkg/models"
)

// Dispatcher launches rule commands asynchronously. Per rule, at most one
// command runs at a time: a message arriving while the previous run is still
// in flight is skipped and reported. There are no retries; a non-zero exit
// is reported, never propagated to ingestion.
type Dispatcher struct {
	running map[*rules.CommandRule]*atomic.Bool
	runner  func(command string) error
	journal *journal.Async
	metrics *telemetry.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	Journal *journal.Async
	Metrics *telemetry.Metrics
	Logger  *slog.Logger

	// Runner overrides command execution, for tests. The default runs the
	// command through `sh -c` with the ambient environment.
	Runner func(command string) error

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// NewDispatcher creates a dispatcher for the given command rules.
func NewDispatcher(cmds []*rules.CommandRule, opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	runner := opts.Runner
	if runner == nil {
		runner = runShell
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	running := make(map[*rules.CommandRule]*atomic.Bool, len(cmds))
	for _, r := range cmds {
		running[r] = &atomic.Bool{}
	}
	return &Dispatcher{
		running: running,
		runner:  runner,
		journal: opts.Journal,
		metrics: opts.Metrics,
		logger:  logger,
		now:     now,
	}
}

// Run launches the rule's command off the calling goroutine and returns
// immediately. A rule whose previous command is still running is skipped.
func (d *Dispatcher) Run(rule *rules.CommandRule) {
	flag := d.running[rule]
	if flag == nil || !flag.CompareAndSwap(false, true) {
		d.logger.Info("previous command still running, skipping",
			"topic", rule.Topic, "cmd", rule.Command)
		if d.metrics != nil {
			d.metrics.CommandsSkipped.WithLabelValues(rule.Topic).Inc()
		}
		d.record(rule, models.OutcomeCommandSkipped)
		return
	}

	d.logger.Debug("running command", "topic", rule.Topic, "cmd", rule.Command)
	if d.metrics != nil {
		d.metrics.CommandsStarted.WithLabelValues(rule.Topic).Inc()
	}
	d.record(rule, models.OutcomeCommandStarted)

	go func() {
		defer flag.Store(false)
		if err := d.runner(rule.Command); err != nil {
			d.logger.Warn("command failed",
				"topic", rule.Topic, "cmd", rule.Command, "error", err)
			if d.metrics != nil {
				d.metrics.CommandsFailed.WithLabelValues(rule.Topic).Inc()
			}
			d.record(rule, models.OutcomeCommandFailed)
			return
		}
		d.record(rule, models.OutcomeCommandFinished)
	}()
}

func (d *Dispatcher) record(rule *rules.CommandRule, outcome string) {
	if d.journal == nil {
		return
	}
	d.journal.Record(models.Event{
		Time:    d.now(),
		Rule:    rule.Topic,
		Topic:   rule.Topic,
		Payload: rule.Command,
		Outcome: outcome,
	})
}

func runShell(command string) error {
	return exec.Command("sh", "-c", command).Run()
}
