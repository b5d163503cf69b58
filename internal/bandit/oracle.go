package bandit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/julianstephens/platewise/internal/config"
	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/models"
)

// Oracle trains and queries the external relational classifier for a trial.
type Oracle interface {
	Train(ctx context.Context, trial *Trial) error
	Test(ctx context.Context, trial *Trial) error
	Parse(trial *Trial) ([]models.Prediction, []apperrors.ParseWarning, error)
}

// BoostSRL runs the boosted relational dependency network jar with Java.
type BoostSRL struct {
	cfg config.BanditConfig
}

func NewBoostSRL(cfg config.BanditConfig) *BoostSRL {
	return &BoostSRL{cfg: cfg}
}

// TrainArgs returns the java arguments for the training stage.
func (b *BoostSRL) TrainArgs(trial *Trial) []string {
	return []string{
		"-jar", b.cfg.JarPath(trial.Dir),
		"-l", "-combine",
		"-train", constants.TrialTrainDir + "/",
		"-target", constants.BanditTarget,
		"-trees", strconv.Itoa(b.cfg.Trees),
	}
}

// TestArgs returns the java arguments for the inference stage.
func (b *BoostSRL) TestArgs(trial *Trial) []string {
	return []string{
		"-jar", b.cfg.JarPath(trial.Dir),
		"-i",
		"-model", constants.TrialModelDir,
		"-test", constants.TrialTestDir + "/",
		"-target", constants.BanditTarget,
		"-aucJarPath", ".",
		"-trees", strconv.Itoa(b.cfg.Trees),
	}
}

func (b *BoostSRL) Train(ctx context.Context, trial *Trial) error {
	return b.run(ctx, trial, "train", b.TrainArgs(trial), constants.TrialTrainLog)
}

func (b *BoostSRL) Test(ctx context.Context, trial *Trial) error {
	return b.run(ctx, trial, "test", b.TestArgs(trial), constants.TrialTestLog)
}

// Parse reads the inference results file of a tested trial.
func (b *BoostSRL) Parse(trial *Trial) ([]models.Prediction, []apperrors.ParseWarning, error) {
	f, err := os.Open(trial.Path(constants.TrialResults))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open classifier results: %w", err)
	}
	defer f.Close()
	return ParsePredictions(f)
}

// stageWaitDelay bounds how long a killed stage waits for children still
// holding its output pipes.
const stageWaitDelay = 2 * time.Second

// run executes one classifier stage in the trial directory. Stdout is kept as
// a log artifact on success; stderr is surfaced in the error on failure.
func (b *BoostSRL) run(ctx context.Context, trial *Trial, stage string, args []string, logName string) error {
	defer logger.Timed("Classifier stage finished", time.Now(), "stage", stage, "trial", trial.ID)

	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.cfg.Java, args...)
	cmd.Dir = trial.Dir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = stageWaitDelay

	logger.Debug("Running classifier", "stage", stage, "trial", trial.ID, "args", args)
	if err := cmd.Run(); err != nil {
		perr := &apperrors.ProcessError{Stage: stage, ExitCode: -1, Stderr: stderr.String(), Err: err}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			perr.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			perr.Err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		logger.Error("Classifier stage failed", "stage", stage, "trial", trial.ID, "exit_code", perr.ExitCode, "error", err)
		return perr
	}

	if err := os.WriteFile(trial.Path(logName), stdout.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", logName, err)
	}
	logger.Info("Classifier stage succeeded", "stage", stage, "trial", trial.ID)
	return nil
}
