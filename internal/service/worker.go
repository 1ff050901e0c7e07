package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/semaphore"

	tfotel "github.com/Strob0t/TestForge/internal/adapter/otel"
	"github.com/Strob0t/TestForge/internal/config"
	"github.com/Strob0t/TestForge/internal/domain/agent"
	"github.com/Strob0t/TestForge/internal/domain/requirements"
	"github.com/Strob0t/TestForge/internal/domain/scenario"
	"github.com/Strob0t/TestForge/internal/port/check"
	"github.com/Strob0t/TestForge/internal/port/notify"
	"github.com/Strob0t/TestForge/internal/port/store"
	"github.com/Strob0t/TestForge/internal/port/workqueue"
)

const (
	defaultQueueWait         = 5 * time.Second
	defaultWorkerConcurrency = 4
	dequeueRetryDelay        = time.Second
)

// WorkerService is the generic runtime every worker class runs: block on
// the class's queue, execute the configured check battery against the
// scenario's target, persist the result and announce it on the session
// channel. The class itself is just an agent definition.
type WorkerService struct {
	def       agent.Definition
	queue     workqueue.Queue
	artifacts store.Store
	channel   notify.Channel
	battery   []check.Check
	queueWait time.Duration
	sem       *semaphore.Weighted
	wg        sync.WaitGroup
	metrics   *tfotel.Metrics
}

// NewWorkerService resolves the agent's check battery and builds the
// runtime. An unknown check name is a configuration error: silently
// dropping a check would change what the worker's scores mean.
func NewWorkerService(
	def agent.Definition,
	queue workqueue.Queue,
	artifacts store.Store,
	channel notify.Channel,
	deps check.Deps,
	cfg config.Worker,
) (*WorkerService, error) {
	if len(def.ToolNames) == 0 {
		return nil, fmt.Errorf("agent %q has no checks configured", def.Key)
	}
	battery := make([]check.Check, 0, len(def.ToolNames))
	for _, name := range def.ToolNames {
		chk, err := check.New(name, deps)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", def.Key, err)
		}
		battery = append(battery, chk)
	}

	wait := cfg.QueueWait
	if wait <= 0 {
		wait = defaultQueueWait
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultWorkerConcurrency
	}

	return &WorkerService{
		def:       def,
		queue:     queue,
		artifacts: artifacts,
		channel:   channel,
		battery:   battery,
		queueWait: wait,
		sem:       semaphore.NewWeighted(int64(concurrency)),
	}, nil
}

// SetMetrics enables metric recording. Without it the worker runs unmetered.
func (w *WorkerService) SetMetrics(m *tfotel.Metrics) {
	w.metrics = m
}

// Run consumes the agent's queue until ctx is cancelled, then waits for
// in-flight scenarios to finish. An empty dequeue window is the normal
// idle outcome and just loops.
func (w *WorkerService) Run(ctx context.Context) error {
	slog.Info("worker started",
		"agent", w.def.Key,
		"queue", w.def.QueueName,
		"checks", len(w.battery),
	)

	for ctx.Err() == nil {
		delivery, err := w.queue.Dequeue(ctx, w.def.QueueName, w.queueWait)
		if errors.Is(err, workqueue.ErrNoWork) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			slog.Warn("dequeue failed", "queue", w.def.QueueName, "error", err)
			select {
			case <-ctx.Done():
			case <-time.After(dequeueRetryDelay):
			}
			continue
		}

		if err := w.sem.Acquire(ctx, 1); err != nil {
			// Shutdown while waiting for a slot; the unacked delivery redelivers.
			_ = delivery.Nak()
			break
		}
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			defer w.sem.Release(1)
			w.handle(ctx, delivery)
		}()
	}

	w.wg.Wait()
	slog.Info("worker stopped", "agent", w.def.Key)
	return nil
}

// handle processes one delivery end to end. Malformed payloads are parked
// on the dead-letter subject and acked; everything else always produces a
// notification or a redelivery, never silence.
func (w *WorkerService) handle(ctx context.Context, delivery workqueue.Delivery) {
	item, err := workqueue.DecodeWorkItem(delivery.Data())
	if err != nil {
		slog.Warn("rejecting malformed work item", "queue", w.def.QueueName, "error", err)
		if dlErr := w.queue.DeadLetter(ctx, w.def.QueueName, delivery.Data()); dlErr != nil {
			slog.Warn("dead-letter failed", "queue", w.def.QueueName, "error", dlErr)
		}
		if ackErr := delivery.Ack(); ackErr != nil {
			slog.Warn("ack failed", "queue", w.def.QueueName, "error", ackErr)
		}
		return
	}

	result := w.runScenario(ctx, item)
	if ctx.Err() != nil {
		// Shutdown mid-battery leaves partial scores; redeliver instead of
		// reporting them.
		_ = delivery.Nak()
		return
	}

	if err := w.persistResult(ctx, item, result); err != nil {
		// The notification carries the result too, so the orchestrator can
		// still verify the session from the payload.
		slog.Warn("persist scenario result failed",
			"session_id", item.SessionID,
			"scenario_id", item.Scenario.ID,
			"error", err,
		)
	}
	if err := w.publishResult(ctx, item, result); err != nil {
		slog.Error("publish notification failed, requesting redelivery",
			"session_id", item.SessionID,
			"scenario_id", item.Scenario.ID,
			"error", err,
		)
		_ = delivery.Nak()
		return
	}
	if err := delivery.Ack(); err != nil {
		slog.Warn("ack failed",
			"session_id", item.SessionID,
			"scenario_id", item.Scenario.ID,
			"error", err,
		)
	}
}

// runScenario executes the full battery with per-check failure isolation
// and aggregates a fresh result. Nothing here reads the previous result:
// redelivered work rebuilds the aggregate from scratch.
func (w *WorkerService) runScenario(ctx context.Context, item *workqueue.WorkItem) *scenario.Result {
	started := time.Now().UTC()
	slog.Info("scenario started",
		"session_id", item.SessionID,
		"scenario_id", item.Scenario.ID,
		"agent", w.def.Key,
	)
	// OTEL: span covers the whole battery
	ctx, span := tfotel.StartScenarioSpan(ctx, item.SessionID, item.Scenario.ID, w.def.Key)
	defer span.End()
	w.markInProgress(ctx, item, started)

	in := w.checkInput(ctx, item)
	checks := make([]scenario.CheckResult, 0, len(w.battery))
	for _, chk := range w.battery {
		checks = append(checks, w.runCheck(ctx, chk, in))
	}

	result := aggregateResult(w.def.Key, item, checks, started)
	slog.Info("scenario finished",
		"session_id", item.SessionID,
		"scenario_id", item.Scenario.ID,
		"status", result.Status,
		"overall_score", result.OverallScore,
	)
	return result
}

// runCheck isolates one check: an error becomes a zero score with the
// error text, and the battery keeps going.
func (w *WorkerService) runCheck(ctx context.Context, chk check.Check, in check.Input) scenario.CheckResult {
	start := time.Now()
	score, err := chk.Run(ctx, in)
	elapsed := time.Since(start).Milliseconds()
	if w.metrics != nil {
		w.metrics.CheckDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(
			attribute.String("check", chk.Name()),
			attribute.String("agent", w.def.Key),
		))
	}
	if err != nil {
		slog.Warn("check errored",
			"check", chk.Name(),
			"scenario_id", in.Scenario.ID,
			"error", err,
		)
		return scenario.CheckResult{Name: chk.Name(), Error: err.Error(), Duration: elapsed}
	}
	return scenario.CheckResult{
		Name:     chk.Name(),
		Score:    clampScore(score.Score),
		Detail:   score.Detail,
		Issues:   score.Issues,
		Duration: elapsed,
	}
}

// checkInput assembles the shared input for every check in the battery.
// The target URL comes from the persisted requirements; a scenario config
// entry overrides it for deep-link scenarios.
func (w *WorkerService) checkInput(ctx context.Context, item *workqueue.WorkItem) check.Input {
	in := check.Input{
		SessionID: item.SessionID,
		Scenario:  item.Scenario,
	}

	data, ok, err := w.artifacts.Get(ctx, store.RequirementsKey(item.SessionID))
	if err != nil || !ok {
		slog.Debug("requirements unavailable for checks",
			"session_id", item.SessionID,
			"error", err,
		)
	} else {
		var req requirements.Requirements
		if err := json.Unmarshal(data, &req); err == nil {
			in.Requirements = req.Text
			in.TargetURL = req.TargetURL
		}
	}

	if u := item.Scenario.Config["target_url"]; u != "" {
		in.TargetURL = u
	}
	return in
}

// markInProgress writes a provisional record under the worker's own result
// key. It is advisory; a failed marker never blocks the battery.
func (w *WorkerService) markInProgress(ctx context.Context, item *workqueue.WorkItem, started time.Time) {
	marker := scenario.Result{
		ScenarioID:   item.Scenario.ID,
		ScenarioName: item.Scenario.Name,
		Agent:        w.def.Key,
		Category:     item.Scenario.Category,
		Status:       scenario.StatusInProgress,
		StartedAt:    started,
	}
	data, err := json.Marshal(marker)
	if err != nil {
		return
	}
	key := store.ScenarioResultKey(w.def.StoreKeyPrefix, item.SessionID, item.Scenario.ID)
	if err := w.artifacts.Set(ctx, key, data); err != nil {
		slog.Warn("in_progress marker write failed",
			"session_id", item.SessionID,
			"scenario_id", item.Scenario.ID,
			"error", err,
		)
	}
}

func (w *WorkerService) persistResult(ctx context.Context, item *workqueue.WorkItem, result *scenario.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	key := store.ScenarioResultKey(w.def.StoreKeyPrefix, item.SessionID, item.Scenario.ID)
	return w.artifacts.Set(ctx, key, data)
}

func (w *WorkerService) publishResult(ctx context.Context, item *workqueue.WorkItem, result *scenario.Result) error {
	n := notify.Notification{
		Agent:      w.def.Key,
		SessionID:  item.SessionID,
		ScenarioID: item.Scenario.ID,
		Status:     result.Status,
		Result:     result,
		Timestamp:  time.Now().UTC(),
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return w.channel.Publish(ctx, notify.ChannelName(item.SessionID), data)
}

// aggregateResult folds the check results into one scenario result. The
// scenario fails only when every check scored zero or errored; a single
// surviving signal keeps it completed, and the issue list tells the rest.
func aggregateResult(agentKey string, item *workqueue.WorkItem, checks []scenario.CheckResult, started time.Time) *scenario.Result {
	var sum float64
	anySignal := false
	issues := make([]string, 0)
	for _, c := range checks {
		sum += c.Score
		if c.Score > 0 {
			anySignal = true
		}
		issues = append(issues, c.Issues...)
		if c.Error != "" {
			issues = append(issues, fmt.Sprintf("%s: %s", c.Name, c.Error))
		}
	}

	overall := 0.0
	if len(checks) > 0 {
		overall = sum / float64(len(checks))
	}
	status := scenario.StatusCompleted
	if !anySignal {
		status = scenario.StatusFailed
	}

	return &scenario.Result{
		ScenarioID:   item.Scenario.ID,
		ScenarioName: item.Scenario.Name,
		Agent:        agentKey,
		Category:     item.Scenario.Category,
		Status:       status,
		OverallScore: overall,
		Checks:       checks,
		Issues:       issues,
		StartedAt:    started,
		CompletedAt:  time.Now().UTC(),
	}
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
