// Package bandittest provides a classifier stand-in for tests that cannot run
// the Java jar.
package bandittest

import (
	"context"
	"sync"

	"github.com/julianstephens/platewise/internal/bandit"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/opinion"
)

// Oracle predicts every listed item for every synthetic user with a fixed
// probability.
type Oracle struct {
	Foods       []string
	Beverages   []string
	Probability float64
	// Err, when set, fails every Train call.
	Err error

	mu     sync.Mutex
	trains int
}

var _ bandit.Oracle = (*Oracle)(nil)

func (o *Oracle) Train(ctx context.Context, trial *bandit.Trial) error {
	o.mu.Lock()
	o.trains++
	o.mu.Unlock()
	return o.Err
}

func (o *Oracle) Test(ctx context.Context, trial *bandit.Trial) error {
	return ctx.Err()
}

func (o *Oracle) Parse(trial *bandit.Trial) ([]models.Prediction, []apperrors.ParseWarning, error) {
	p := o.Probability
	if p == 0 {
		p = 0.9
	}
	var preds []models.Prediction
	for u := 1; u <= opinion.NumUsers; u++ {
		for _, id := range o.Foods {
			preds = append(preds, models.Prediction{User: u, Kind: models.KindFood, ItemID: id, Probability: p})
		}
		for _, id := range o.Beverages {
			preds = append(preds, models.Prediction{User: u, Kind: models.KindBeverage, ItemID: id, Probability: p})
		}
	}
	return preds, nil, nil
}

// Trains reports how many times Train was called.
func (o *Oracle) Trains() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.trains
}
