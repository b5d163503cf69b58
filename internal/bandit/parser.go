package bandit

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/models"
)

var (
	// [!]recommendation(user_N,food_K). 0.83
	predictionLine = regexp.MustCompile(`^(!)?\s*recommendation\(\s*user_(\d+)\s*,\s*(bev|food)_([^)\s]+)\s*\)\.?\s+([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*$`)
	decimalToken   = regexp.MustCompile(`\d+\.?\d*`)
)

// ParsePredictions reads classifier output, one prediction per line. Lines are
// matched against the structured grammar first and fall back to positional
// decimal extraction (first token user, second item, last probability).
// Lines that fit neither are returned as warnings and skipped.
func ParsePredictions(r io.Reader) ([]models.Prediction, []apperrors.ParseWarning, error) {
	var (
		preds    []models.Prediction
		warnings []apperrors.ParseWarning
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		p, err := parseStructured(line)
		if err != nil {
			p, err = parsePositional(line)
		}
		if err != nil {
			w := apperrors.ParseWarning{Line: lineNo, Text: line, Reason: err.Error()}
			logger.Warn("Skipping classifier output line", "line", lineNo, "reason", w.Reason)
			warnings = append(warnings, w)
			continue
		}
		preds = append(preds, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read classifier output: %w", err)
	}
	return preds, warnings, nil
}

func parseStructured(line string) (models.Prediction, error) {
	m := predictionLine.FindStringSubmatch(line)
	if m == nil {
		return models.Prediction{}, fmt.Errorf("not a structured prediction")
	}
	user, err := strconv.Atoi(m[2])
	if err != nil {
		return models.Prediction{}, fmt.Errorf("invalid user: %w", err)
	}
	prob, err := strconv.ParseFloat(m[5], 64)
	if err != nil {
		return models.Prediction{}, fmt.Errorf("invalid probability: %w", err)
	}
	return models.Prediction{
		User:        user,
		Kind:        models.ItemKind(m[3]),
		ItemID:      m[4],
		Probability: prob,
		Negative:    m[1] == "!",
	}, nil
}

func parsePositional(line string) (models.Prediction, error) {
	negative := strings.HasPrefix(line, "!")
	body := strings.TrimPrefix(line, "!")

	var kind models.ItemKind
	switch {
	case strings.Contains(body, string(models.KindBeverage)):
		kind = models.KindBeverage
	case strings.Contains(body, string(models.KindFood)):
		kind = models.KindFood
	default:
		return models.Prediction{}, fmt.Errorf("no bev or food item")
	}

	tokens := decimalToken.FindAllString(body, -1)
	if len(tokens) < 3 {
		return models.Prediction{}, fmt.Errorf("expected user, item and probability, found %d numbers", len(tokens))
	}
	user, err := strconv.Atoi(tokens[0])
	if err != nil {
		return models.Prediction{}, fmt.Errorf("invalid user %q", tokens[0])
	}
	prob, err := strconv.ParseFloat(tokens[len(tokens)-1], 64)
	if err != nil {
		return models.Prediction{}, fmt.Errorf("invalid probability %q", tokens[len(tokens)-1])
	}
	return models.Prediction{
		User:        user,
		Kind:        kind,
		ItemID:      tokens[1],
		Probability: prob,
		Negative:    negative,
	}, nil
}
