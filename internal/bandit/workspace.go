package bandit

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/julianstephens/platewise/internal/catalog"
	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/opinion"
)

// Trial is one classifier workspace.
type Trial struct {
	ID  string
	Dir string
}

// Path joins a workspace-relative path onto the trial directory.
func (t *Trial) Path(rel string) string {
	return filepath.Join(t.Dir, filepath.FromSlash(rel))
}

// TrialConfig is written to config.json in every configured trial.
type TrialConfig struct {
	NumUsers int `json:"num_users"`
	NumPos   int `json:"num_pos"`
	NumNeg   int `json:"num_neg"`
}

// TrialInfo describes a trial directory found on disk.
type TrialInfo struct {
	ID         string
	Dir        string
	ModTime    time.Time
	HasResults bool
}

// Workspaces manages trial directories under Root, each cloned from Template.
type Workspaces struct {
	Root     string
	Template string
}

func NewWorkspaces(root, template string) *Workspaces {
	return &Workspaces{Root: root, Template: template}
}

// Create clones the template into a new uniquely named trial directory.
func (w *Workspaces) Create() (*Trial, error) {
	info, err := os.Stat(w.Template)
	if err != nil || !info.IsDir() {
		return nil, apperrors.Configuration("trial template %s is not a directory", w.Template)
	}
	if err := os.MkdirAll(w.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create trial root: %w", err)
	}

	id := uuid.NewString()
	dir := filepath.Join(w.Root, constants.TrialDirPrefix+id)
	if err := os.CopyFS(dir, os.DirFS(w.Template)); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("failed to clone trial template: %w", err)
	}
	for _, sub := range []string{constants.TrialTrainDir, constants.TrialTestDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0755); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}

	logger.Debug("Trial created", "trial", id, "dir", dir)
	return &Trial{ID: id, Dir: dir}, nil
}

// Configure writes the training and test facts and pairs for every opinion
// vector, then config.json. Facts and pairs are each split into train and
// test sets at fraction.
func (w *Workspaces) Configure(trial *Trial, opinions []opinion.Vector, snap *catalog.Snapshot, fraction float64, rng *rand.Rand) (TrialConfig, error) {
	userFacts, itemFacts := opinion.GenerateFacts(opinions, snap)
	pos, neg := opinion.GeneratePairs(opinions, snap)

	userTrain, userTest := opinion.SplitTrainTest(userFacts, fraction, rng)
	itemTrain, itemTest := opinion.SplitTrainTest(itemFacts, fraction, rng)
	trainPos, testPos := opinion.SplitTrainTest(pos, fraction, rng)
	trainNeg, testNeg := opinion.SplitTrainTest(neg, fraction, rng)

	files := []struct {
		path  string
		lines []string
	}{
		{constants.TrialTrainFacts, append(userTrain, itemTrain...)},
		{constants.TrialTrainNeg, trainNeg},
		{constants.TrialTrainPos, trainPos},
		{constants.TrialTestFacts, append(userTest, itemTest...)},
		{constants.TrialTestNeg, testNeg},
		{constants.TrialTestPos, testPos},
	}
	for _, f := range files {
		if err := writeLines(trial.Path(f.path), f.lines); err != nil {
			return TrialConfig{}, err
		}
	}

	cfg := TrialConfig{NumUsers: len(opinions), NumPos: len(pos), NumNeg: len(neg)}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return cfg, fmt.Errorf("failed to encode trial config: %w", err)
	}
	if err := os.WriteFile(trial.Path(constants.TrialConfig), data, 0644); err != nil {
		return cfg, fmt.Errorf("failed to write trial config: %w", err)
	}

	logger.Debug("Trial configured", "trial", trial.ID, "pos", cfg.NumPos, "neg", cfg.NumNeg)
	return cfg, nil
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Open returns the trial with the given id if its directory exists.
func (w *Workspaces) Open(id string) (*Trial, error) {
	dir := filepath.Join(w.Root, constants.TrialDirPrefix+id)
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("trial %s: %w", id, err)
	}
	return &Trial{ID: id, Dir: dir}, nil
}

// Remove deletes a trial directory. The template is never removed.
func (w *Workspaces) Remove(trial *Trial) error {
	if filepath.Clean(trial.Dir) == filepath.Clean(w.Template) {
		return errors.New("refusing to remove the trial template")
	}
	return os.RemoveAll(trial.Dir)
}

// List returns trial directories under Root, newest first.
func (w *Workspaces) List() ([]TrialInfo, error) {
	entries, err := os.ReadDir(w.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read trial root: %w", err)
	}

	var trials []TrialInfo
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), constants.TrialDirPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		dir := filepath.Join(w.Root, e.Name())
		_, statErr := os.Stat(filepath.Join(dir, filepath.FromSlash(constants.TrialResults)))
		trials = append(trials, TrialInfo{
			ID:         strings.TrimPrefix(e.Name(), constants.TrialDirPrefix),
			Dir:        dir,
			ModTime:    info.ModTime(),
			HasResults: statErr == nil,
		})
	}

	sort.Slice(trials, func(i, j int) bool {
		return trials[i].ModTime.After(trials[j].ModTime)
	})
	return trials, nil
}

// Prune removes all but the newest keep trials and returns how many were removed.
// keep <= 0 removes nothing.
func (w *Workspaces) Prune(keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	trials, err := w.List()
	if err != nil {
		return 0, err
	}
	if len(trials) <= keep {
		return 0, nil
	}

	removed := 0
	for _, t := range trials[keep:] {
		if err := w.Remove(&Trial{ID: t.ID, Dir: t.Dir}); err != nil {
			logger.Warn("Failed to remove trial", "trial", t.ID, "error", err)
			continue
		}
		removed++
	}
	logger.Debug("Pruned trials", "removed", removed, "kept", keep)
	return removed, nil
}
