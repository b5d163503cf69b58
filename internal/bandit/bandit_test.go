package bandit

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/julianstephens/platewise/internal/catalog"
	"github.com/julianstephens/platewise/internal/config"
	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/opinion"
)

func testSnapshot() *catalog.Snapshot {
	return catalog.NewSnapshot(
		map[string]models.FoodItem{
			"10": {ID: "10", Roles: []models.Role{models.RoleMainCourse}, DietaryFlags: models.DietaryFlags{HasMeat: true}},
			"20": {ID: "20", Roles: []models.Role{models.RoleSide}, DietaryFlags: models.DietaryFlags{HasDairy: true}},
			"30": {ID: "30", Roles: []models.Role{models.RoleDessert}, DietaryFlags: models.DietaryFlags{HasNuts: true}},
		},
		map[string]models.Beverage{
			"40": {ID: "40"},
		},
	)
}

// newWorkspaces builds a root with a template holding a placeholder jar.
func newWorkspaces(t *testing.T) *Workspaces {
	t.Helper()
	root := filepath.Join(t.TempDir(), "trials")
	template := filepath.Join(root, "trial0")
	if err := os.MkdirAll(filepath.Join(template, "train"), 0755); err != nil {
		t.Fatalf("failed to create template: %v", err)
	}
	if err := os.WriteFile(filepath.Join(template, "boostsrl.jar"), []byte("jar"), 0644); err != nil {
		t.Fatalf("failed to write jar: %v", err)
	}
	return NewWorkspaces(root, template)
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestWorkspaces_CreateAndConfigure(t *testing.T) {
	ws := newWorkspaces(t)

	trial, err := ws.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !strings.HasPrefix(filepath.Base(trial.Dir), constants.TrialDirPrefix) {
		t.Errorf("trial dir = %s, want %s prefix", trial.Dir, constants.TrialDirPrefix)
	}
	if _, err := os.Stat(trial.Path("boostsrl.jar")); err != nil {
		t.Errorf("template contents not cloned: %v", err)
	}

	other, err := ws.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if other.Dir == trial.Dir {
		t.Error("two trials share a directory")
	}

	cfg, err := ws.Configure(trial, opinion.Enumerate(), testSnapshot(), 0.8, rand.New(rand.NewPCG(1, 1)))
	if err != nil {
		t.Fatalf("Configure() error = %v", err)
	}
	if cfg.NumUsers != 27 || cfg.NumPos+cfg.NumNeg != 27*4 {
		t.Errorf("Configure() = %+v", cfg)
	}

	trainPos := readLines(t, trial.Path(constants.TrialTrainPos))
	testPos := readLines(t, trial.Path(constants.TrialTestPos))
	if len(trainPos) != int(float64(cfg.NumPos)*0.8) || len(trainPos)+len(testPos) != cfg.NumPos {
		t.Errorf("positive split = %d/%d of %d", len(trainPos), len(testPos), cfg.NumPos)
	}
	trainNeg := readLines(t, trial.Path(constants.TrialTrainNeg))
	testNeg := readLines(t, trial.Path(constants.TrialTestNeg))
	if len(trainNeg)+len(testNeg) != cfg.NumNeg {
		t.Errorf("negative split = %d/%d of %d", len(trainNeg), len(testNeg), cfg.NumNeg)
	}

	// 54 preference facts plus one fact per true item flag.
	facts := append(readLines(t, trial.Path(constants.TrialTrainFacts)), readLines(t, trial.Path(constants.TrialTestFacts))...)
	if len(facts) != 57 {
		t.Errorf("total facts = %d, want 57", len(facts))
	}

	data, err := os.ReadFile(trial.Path(constants.TrialConfig))
	if err != nil {
		t.Fatalf("failed to read config.json: %v", err)
	}
	var written TrialConfig
	if err := json.Unmarshal(data, &written); err != nil {
		t.Fatalf("config.json is not valid JSON: %v", err)
	}
	if written != cfg {
		t.Errorf("config.json = %+v, want %+v", written, cfg)
	}
}

func TestWorkspaces_MissingTemplate(t *testing.T) {
	ws := NewWorkspaces(t.TempDir(), filepath.Join(t.TempDir(), "missing"))
	if _, err := ws.Create(); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Fatalf("Create() error = %v, want configuration error", err)
	}
}

func TestWorkspaces_ListAndPrune(t *testing.T) {
	ws := newWorkspaces(t)

	var trials []*Trial
	for i := 0; i < 4; i++ {
		trial, err := ws.Create()
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		mod := time.Now().Add(time.Duration(i-10) * time.Minute)
		if err := os.Chtimes(trial.Dir, mod, mod); err != nil {
			t.Fatalf("Chtimes() error = %v", err)
		}
		trials = append(trials, trial)
	}

	list, err := ws.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("List() returned %d trials, want 4 (template excluded)", len(list))
	}
	if list[0].ID != trials[3].ID {
		t.Errorf("List()[0] = %s, want newest %s", list[0].ID, trials[3].ID)
	}

	removed, err := ws.Prune(2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if removed != 2 {
		t.Errorf("Prune() removed %d, want 2", removed)
	}
	if _, err := os.Stat(trials[0].Dir); !os.IsNotExist(err) {
		t.Error("oldest trial still exists")
	}
	if _, err := os.Stat(ws.Template); err != nil {
		t.Errorf("template removed: %v", err)
	}
	if err := ws.Remove(&Trial{Dir: ws.Template}); err == nil {
		t.Error("Remove() accepted the template")
	}
}

func TestParsePredictions(t *testing.T) {
	input := strings.Join([]string{
		"recommendation(user_1,food_10). 0.91",
		"!recommendation(user_2,bev_40). 0.12",
		"recommendation(user_3, food_20) 0.5",
		"",
		"garbage line",
		"!recommendation(user_4,food_30) 1.0E-3",
		"user 5 likes food 12 with 0.75",
		"recommendation(user_6,drink_9). 0.4",
	}, "\n")

	preds, warnings, err := ParsePredictions(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParsePredictions() error = %v", err)
	}

	want := []models.Prediction{
		{User: 1, Kind: models.KindFood, ItemID: "10", Probability: 0.91},
		{User: 2, Kind: models.KindBeverage, ItemID: "40", Probability: 0.12, Negative: true},
		{User: 3, Kind: models.KindFood, ItemID: "20", Probability: 0.5},
		{User: 4, Kind: models.KindFood, ItemID: "30", Probability: 0.001, Negative: true},
		{User: 5, Kind: models.KindFood, ItemID: "12", Probability: 0.75},
	}
	if len(preds) != len(want) {
		t.Fatalf("ParsePredictions() returned %d predictions, want %d: %+v", len(preds), len(want), preds)
	}
	for i := range want {
		if preds[i] != want[i] {
			t.Errorf("prediction %d = %+v, want %+v", i, preds[i], want[i])
		}
	}

	if len(warnings) != 2 {
		t.Fatalf("ParsePredictions() returned %d warnings, want 2: %+v", len(warnings), warnings)
	}
	if warnings[0].Line != 5 || warnings[1].Line != 8 {
		t.Errorf("warning lines = %d, %d, want 5, 8", warnings[0].Line, warnings[1].Line)
	}
}

// fakeOracle records calls and fails stages on request.
type fakeOracle struct {
	calls    []string
	trainErr error
	testErr  error
	preds    []models.Prediction
	warnings []apperrors.ParseWarning
}

func (f *fakeOracle) Train(ctx context.Context, trial *Trial) error {
	f.calls = append(f.calls, "train")
	return f.trainErr
}

func (f *fakeOracle) Test(ctx context.Context, trial *Trial) error {
	f.calls = append(f.calls, "test")
	return f.testErr
}

func (f *fakeOracle) Parse(trial *Trial) ([]models.Prediction, []apperrors.ParseWarning, error) {
	f.calls = append(f.calls, "parse")
	return f.preds, f.warnings, nil
}

func TestPipeline_Run(t *testing.T) {
	oracle := &fakeOracle{preds: []models.Prediction{{User: 1, Kind: models.KindFood, ItemID: "10", Probability: 0.9}}}
	p := &Pipeline{Workspaces: newWorkspaces(t), Oracle: oracle, TrainFraction: 0.8}

	run, err := p.Run(context.Background(), testSnapshot(), rand.New(rand.NewPCG(3, 3)))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if run.Stage() != StageParsed {
		t.Errorf("Stage() = %s, want parsed", run.Stage())
	}
	if strings.Join(oracle.calls, ",") != "train,test,parse" {
		t.Errorf("oracle calls = %v", oracle.calls)
	}
	if len(run.Predictions) != 1 {
		t.Errorf("Predictions = %+v", run.Predictions)
	}
}

func TestPipeline_TrainFailureIsTerminal(t *testing.T) {
	procErr := &apperrors.ProcessError{Stage: "train", ExitCode: 1, Stderr: "OutOfMemoryError"}
	oracle := &fakeOracle{trainErr: procErr}
	p := &Pipeline{Workspaces: newWorkspaces(t), Oracle: oracle, TrainFraction: 0.8}

	run, err := p.Run(context.Background(), testSnapshot(), rand.New(rand.NewPCG(3, 3)))
	if !errors.Is(err, apperrors.ErrExternalProcess) {
		t.Fatalf("Run() error = %v, want external process error", err)
	}
	if len(oracle.calls) != 1 {
		t.Errorf("oracle calls = %v, want only train", oracle.calls)
	}
	if run.Stage() != StageConfigured {
		t.Errorf("Stage() = %s, want configured", run.Stage())
	}
	if err := run.Test(context.Background()); err != procErr {
		t.Errorf("Test() after failure = %v, want original failure", err)
	}
	if len(oracle.calls) != 1 {
		t.Error("Test() reached the oracle after a failed train")
	}
}

func TestRun_EnforcesOrder(t *testing.T) {
	oracle := &fakeOracle{}
	p := &Pipeline{Workspaces: newWorkspaces(t), Oracle: oracle, TrainFraction: 0.8}

	run, err := p.Start(testSnapshot(), rand.New(rand.NewPCG(1, 2)))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := run.Test(context.Background()); err == nil {
		t.Error("Test() before Train() succeeded")
	}
	if err := run.Parse(); err == nil {
		t.Error("Parse() before Test() succeeded")
	}
	if len(oracle.calls) != 0 {
		t.Errorf("oracle calls = %v, want none", oracle.calls)
	}
	if err := run.Train(context.Background()); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	if run.Stage() != StageTrained {
		t.Errorf("Stage() = %s, want trained", run.Stage())
	}
}

func TestBreaker_OpensAfterFailures(t *testing.T) {
	oracle := &fakeOracle{trainErr: &apperrors.ProcessError{Stage: "train", ExitCode: 2}}
	b := NewBreaker(oracle, 2, time.Hour)
	trial := &Trial{ID: "t"}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := b.Train(ctx, trial); !errors.Is(err, apperrors.ErrExternalProcess) {
			t.Fatalf("Train() #%d error = %v", i, err)
		}
	}

	err := b.Train(ctx, trial)
	if !errors.Is(err, ErrBreakerOpen) || !errors.Is(err, apperrors.ErrExternalProcess) {
		t.Fatalf("Train() with open breaker error = %v, want ErrBreakerOpen", err)
	}
	if len(oracle.calls) != 2 {
		t.Errorf("oracle called %d times, want 2", len(oracle.calls))
	}
	if b.State() != "open" {
		t.Errorf("State() = %s, want open", b.State())
	}
}

func TestBreaker_IgnoresNonProcessErrors(t *testing.T) {
	killed := errors.New("signal: killed")
	tests := []struct {
		name string
		err  error
	}{
		{"canceled", context.Canceled},
		{"timed out stage", &apperrors.ProcessError{Stage: "train", ExitCode: -1, Err: fmt.Errorf("%w: %w", context.DeadlineExceeded, killed)}},
		{"canceled stage", &apperrors.ProcessError{Stage: "test", ExitCode: -1, Err: fmt.Errorf("%w: %w", context.Canceled, killed)}},
		{"java missing", &apperrors.ProcessError{Stage: "train", ExitCode: -1, Err: &exec.Error{Name: "java", Err: exec.ErrNotFound}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oracle := &fakeOracle{trainErr: tt.err}
			b := NewBreaker(oracle, 1, time.Hour)

			for i := 0; i < 3; i++ {
				if err := b.Train(context.Background(), &Trial{}); !errors.Is(err, tt.err) {
					t.Fatalf("Train() #%d error = %v, want %v", i, err, tt.err)
				}
			}
			if len(oracle.calls) != 3 {
				t.Errorf("oracle called %d times, want 3", len(oracle.calls))
			}
			if b.State() != "closed" {
				t.Errorf("State() = %s, want closed", b.State())
			}
		})
	}
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-java")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}
	return path
}

func TestBoostSRL_Stages(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}

	ws := newWorkspaces(t)
	trial, err := ws.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	cfg := config.Default(t.TempDir()).Bandit
	cfg.Java = writeScript(t, `echo "args: $*"; mkdir -p test; echo "recommendation(user_1,food_10). 0.7" > test/results_recommendation.db`)
	oracle := NewBoostSRL(cfg)

	if err := oracle.Train(context.Background(), trial); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	out, err := os.ReadFile(trial.Path(constants.TrialTrainLog))
	if err != nil {
		t.Fatalf("train log missing: %v", err)
	}
	if !strings.Contains(string(out), "-combine -train train/ -target recommendation -trees 20") {
		t.Errorf("train log = %q", out)
	}

	if err := oracle.Test(context.Background(), trial); err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	out, _ = os.ReadFile(trial.Path(constants.TrialTestLog))
	if !strings.Contains(string(out), "-i -model train/models/ -test test/ -target recommendation -aucJarPath . -trees 20") {
		t.Errorf("test log = %q", out)
	}

	preds, _, err := oracle.Parse(trial)
	if err != nil || len(preds) != 1 || preds[0].ItemID != "10" {
		t.Errorf("Parse() = %+v, %v", preds, err)
	}
}

func TestBoostSRL_TimeoutBoundsStage(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}

	ws := newWorkspaces(t)
	trial, err := ws.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	cfg := config.Default(t.TempDir()).Bandit
	cfg.Java = writeScript(t, "sleep 10; echo done")
	cfg.Timeout = 100 * time.Millisecond
	b := NewBreaker(NewBoostSRL(cfg), 1, time.Minute)

	start := time.Now()
	err = b.Train(context.Background(), trial)
	if elapsed := time.Since(start); elapsed > 6*time.Second {
		t.Errorf("Train() returned after %v, want it bounded by the timeout", elapsed)
	}
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, apperrors.ErrExternalProcess) {
		t.Fatalf("Train() error = %v, want a timed out process error", err)
	}

	err = b.Train(context.Background(), trial)
	if errors.Is(err, ErrBreakerOpen) || b.State() != "closed" {
		t.Errorf("second Train() error = %v, state %s, want the breaker still closed", err, b.State())
	}
}

func TestBoostSRL_NonZeroExit(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in requires a POSIX shell")
	}

	ws := newWorkspaces(t)
	trial, err := ws.Create()
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	cfg := config.Default(t.TempDir()).Bandit
	cfg.Java = writeScript(t, `echo "model directory missing" >&2; exit 3`)

	err = NewBoostSRL(cfg).Test(context.Background(), trial)
	var perr *apperrors.ProcessError
	if !errors.As(err, &perr) {
		t.Fatalf("Test() error = %v, want *ProcessError", err)
	}
	if perr.ExitCode != 3 || perr.Stage != "test" || !strings.Contains(perr.Stderr, "model directory missing") {
		t.Errorf("ProcessError = %+v", perr)
	}
	if _, err := os.Stat(trial.Path(constants.TrialTestLog)); !os.IsNotExist(err) {
		t.Error("test log written for a failed stage")
	}
}
