package items

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

const rangeSep = "|"

type numericRange struct {
	min, max *float64
}

func parseRange(presentation string) (numericRange, error) {
	var r numericRange
	if strings.TrimSpace(presentation) == "" {
		return r, nil
	}
	low, high, _ := strings.Cut(presentation, rangeSep)
	parse := func(s string) (*float64, error) {
		s = strings.TrimSpace(s)
		if s == "" || s == "-" {
			return nil, nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bound %q", ErrInvalidPresentation, s)
		}
		return &v, nil
	}
	var err error
	if r.min, err = parse(low); err != nil {
		return r, err
	}
	if r.max, err = parse(high); err != nil {
		return r, err
	}
	if r.min != nil && r.max != nil && *r.min > *r.max {
		return r, fmt.Errorf("%w: minimum above maximum", ErrInvalidPresentation)
	}
	return r, nil
}

type numeric struct{}

func (numeric) Name() string           { return "numeric" }
func (numeric) HasValue() bool         { return true }
func (numeric) CanSwitchRequire() bool { return true }
func (numeric) DependCandidate() bool  { return true }

func (numeric) ValidatePresentation(presentation string) error {
	_, err := parseRange(presentation)
	return err
}

func (numeric) CleanValue(item models.Item, raw []string) (string, error) {
	value := strings.ReplaceAll(firstValue(raw), ",", ".")
	if value == "" {
		return "", nil
	}
	number, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(number) || math.IsInf(number, 0) {
		return "", fmt.Errorf("%w: %q is not a number", ErrInvalidValue, value)
	}
	r, err := parseRange(item.Presentation)
	if err != nil {
		return "", err
	}
	if r.min != nil && number < *r.min {
		return "", fmt.Errorf("%w: below minimum %s", ErrInvalidValue, formatNumber(*r.min))
	}
	if r.max != nil && number > *r.max {
		return "", fmt.Errorf("%w: above maximum %s", ErrInvalidValue, formatNumber(*r.max))
	}
	return formatNumber(number), nil
}

func (numeric) IsEmptyValue(_ models.Item, stored string) bool {
	return strings.TrimSpace(stored) == ""
}

func (numeric) CompareValue(_ models.Item, stored, dependValue string) bool {
	a, errA := strconv.ParseFloat(strings.TrimSpace(stored), 64)
	b, errB := strconv.ParseFloat(strings.TrimSpace(dependValue), 64)
	if errA != nil || errB != nil {
		return strings.TrimSpace(stored) == strings.TrimSpace(dependValue)
	}
	return a == b
}

func (numeric) PrintableValue(_ models.Item, stored string) string {
	return stored
}

func (numeric) NumericValue(_ models.Item, stored string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(stored), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func (n numeric) Analyse(item models.Item, values []string) Analysis {
	var analysis Analysis
	sum := 0.0
	for _, value := range values {
		v, ok := n.NumericValue(item, value)
		if !ok {
			continue
		}
		analysis.Values = append(analysis.Values, formatNumber(v))
		sum += v
	}
	analysis.Total = len(analysis.Values)
	if analysis.Total > 0 {
		avg := sum / float64(analysis.Total)
		analysis.Average = &avg
	}
	return analysis
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// sizePair parses "a|b" presentations used by text items.
func sizePair(presentation string) (int, int, error) {
	if strings.TrimSpace(presentation) == "" {
		return 0, 0, nil
	}
	first, second, _ := strings.Cut(presentation, rangeSep)
	a, err := atoiOrZero(first)
	if err != nil {
		return 0, 0, err
	}
	b, err := atoiOrZero(second)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func atoiOrZero(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPresentation, s)
	}
	return v, nil
}

func analyseText(values []string) Analysis {
	var analysis Analysis
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		analysis.Values = append(analysis.Values, value)
	}
	analysis.Total = len(analysis.Values)
	return analysis
}

type textfield struct{}

func (textfield) Name() string           { return "textfield" }
func (textfield) HasValue() bool         { return true }
func (textfield) CanSwitchRequire() bool { return true }
func (textfield) DependCandidate() bool  { return true }

func (textfield) ValidatePresentation(presentation string) error {
	_, _, err := sizePair(presentation)
	return err
}

func (textfield) CleanValue(item models.Item, raw []string) (string, error) {
	value := firstValue(raw)
	_, maxLength, err := sizePair(item.Presentation)
	if err != nil {
		return "", err
	}
	if maxLength > 0 && utf8.RuneCountInString(value) > maxLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidValue, maxLength)
	}
	return value, nil
}

func (textfield) IsEmptyValue(_ models.Item, stored string) bool {
	return strings.TrimSpace(stored) == ""
}

func (textfield) CompareValue(_ models.Item, stored, dependValue string) bool {
	return strings.TrimSpace(stored) == strings.TrimSpace(dependValue)
}

func (textfield) PrintableValue(_ models.Item, stored string) string {
	return stored
}

func (textfield) Analyse(_ models.Item, values []string) Analysis {
	return analyseText(values)
}

type textarea struct{}

func (textarea) Name() string           { return "textarea" }
func (textarea) HasValue() bool         { return true }
func (textarea) CanSwitchRequire() bool { return true }
func (textarea) DependCandidate() bool  { return true }

func (textarea) ValidatePresentation(presentation string) error {
	_, _, err := sizePair(presentation)
	return err
}

func (textarea) CleanValue(_ models.Item, raw []string) (string, error) {
	return strings.TrimSpace(strings.Join(raw, "\n")), nil
}

func (textarea) IsEmptyValue(_ models.Item, stored string) bool {
	return strings.TrimSpace(stored) == ""
}

func (textarea) CompareValue(_ models.Item, stored, dependValue string) bool {
	return strings.TrimSpace(stored) == strings.TrimSpace(dependValue)
}

func (textarea) PrintableValue(_ models.Item, stored string) string {
	return stored
}

func (textarea) Analyse(_ models.Item, values []string) Analysis {
	return analyseText(values)
}

// label shows rich text between questions and never stores answers.
type label struct{}

func (label) Name() string                                  { return models.ItemTypeLabel }
func (label) HasValue() bool                                { return false }
func (label) CanSwitchRequire() bool                        { return false }
func (label) DependCandidate() bool                         { return false }
func (label) ValidatePresentation(string) error             { return nil }
func (label) IsEmptyValue(models.Item, string) bool         { return true }
func (label) CompareValue(models.Item, string, string) bool { return false }
func (label) PrintableValue(models.Item, string) string     { return "" }
func (label) Analyse(models.Item, []string) Analysis        { return Analysis{} }

func (label) CleanValue(models.Item, []string) (string, error) {
	return "", nil
}

type pagebreak struct{}

func (pagebreak) Name() string                                  { return models.ItemTypePagebreak }
func (pagebreak) HasValue() bool                                { return false }
func (pagebreak) CanSwitchRequire() bool                        { return false }
func (pagebreak) DependCandidate() bool                         { return false }
func (pagebreak) ValidatePresentation(string) error             { return nil }
func (pagebreak) IsEmptyValue(models.Item, string) bool         { return true }
func (pagebreak) CompareValue(models.Item, string, string) bool { return false }
func (pagebreak) PrintableValue(models.Item, string) string     { return "" }
func (pagebreak) Analyse(models.Item, []string) Analysis        { return Analysis{} }

func (pagebreak) CleanValue(models.Item, []string) (string, error) {
	return "", nil
}
