package bandit

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/julianstephens/platewise/internal/catalog"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/opinion"
)

// Stage is a trial's position in the train/test state machine.
type Stage int

const (
	StageNew Stage = iota
	StageConfigured
	StageTrained
	StageTested
	StageParsed
)

func (s Stage) String() string {
	switch s {
	case StageNew:
		return "new"
	case StageConfigured:
		return "configured"
	case StageTrained:
		return "trained"
	case StageTested:
		return "tested"
	case StageParsed:
		return "parsed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Pipeline runs one classifier trial end to end.
type Pipeline struct {
	Workspaces *Workspaces
	Oracle     Oracle
	// TrainFraction is the share of facts and pairs used for training.
	TrainFraction float64
}

// Run is a single trial moving through the stages. Stages must be entered in
// order; once a stage fails the run is terminal and every later call returns
// that failure.
type Run struct {
	Trial       *Trial
	Config      TrialConfig
	Predictions []models.Prediction
	Warnings    []apperrors.ParseWarning

	oracle Oracle
	stage  Stage
	err    error
}

func (r *Run) Stage() Stage { return r.stage }

// Err returns the failure that ended the run, if any.
func (r *Run) Err() error { return r.err }

func (r *Run) advance(from, to Stage, fn func() error) error {
	if r.err != nil {
		return r.err
	}
	if r.stage != from {
		return fmt.Errorf("trial %s: cannot move to %s from %s", r.Trial.ID, to, r.stage)
	}
	if err := fn(); err != nil {
		r.err = err
		return err
	}
	r.stage = to
	return nil
}

// Start creates and configures a trial workspace.
func (p *Pipeline) Start(snap *catalog.Snapshot, rng *rand.Rand) (*Run, error) {
	trial, err := p.Workspaces.Create()
	if err != nil {
		return nil, err
	}
	run := &Run{Trial: trial, oracle: p.Oracle}
	err = run.advance(StageNew, StageConfigured, func() error {
		cfg, err := p.Workspaces.Configure(trial, opinion.Enumerate(), snap, p.TrainFraction, rng)
		run.Config = cfg
		return err
	})
	if err != nil {
		return run, err
	}
	return run, nil
}

func (r *Run) Train(ctx context.Context) error {
	return r.advance(StageConfigured, StageTrained, func() error {
		return r.oracle.Train(ctx, r.Trial)
	})
}

func (r *Run) Test(ctx context.Context) error {
	return r.advance(StageTrained, StageTested, func() error {
		return r.oracle.Test(ctx, r.Trial)
	})
}

func (r *Run) Parse() error {
	return r.advance(StageTested, StageParsed, func() error {
		preds, warnings, err := r.oracle.Parse(r.Trial)
		if err != nil {
			return err
		}
		r.Predictions, r.Warnings = preds, warnings
		return nil
	})
}

// Run executes configure, train, test and parse in order.
func (p *Pipeline) Run(ctx context.Context, snap *catalog.Snapshot, rng *rand.Rand) (*Run, error) {
	defer logger.Timed("Bandit pipeline finished", time.Now())

	run, err := p.Start(snap, rng)
	if err != nil {
		return run, err
	}
	log := logger.With("trial", run.Trial.ID)
	for _, step := range []func() error{
		func() error { return run.Train(ctx) },
		func() error { return run.Test(ctx) },
		run.Parse,
	} {
		if err := step(); err != nil {
			log.Error("Bandit trial failed", "stage", run.Stage(), "error", err)
			return run, err
		}
	}

	if len(run.Warnings) > 0 {
		log.Warn("Classifier output had unparsable lines", "skipped", len(run.Warnings))
	}
	log.Info("Bandit trial complete", "predictions", len(run.Predictions))
	return run, nil
}
