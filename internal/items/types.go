// Package items holds the behaviour of every item type a feedback can contain.
package items

import (
	"errors"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

var (
	// ErrUnknownType indicates an item type without a registered implementation.
	ErrUnknownType = errors.New("unknown item type")
	// ErrInvalidPresentation indicates a presentation string the type cannot parse.
	ErrInvalidPresentation = errors.New("invalid item presentation")
	// ErrInvalidValue indicates a submitted value the type rejects.
	ErrInvalidValue = errors.New("invalid item value")
)

// Type describes how an item kind stores, validates and analyses answers.
type Type interface {
	Name() string
	HasValue() bool
	CanSwitchRequire() bool
	// DependCandidate reports whether other items may depend on this kind.
	DependCandidate() bool
	ValidatePresentation(presentation string) error
	// CleanValue turns raw submitted values into the stored string form.
	CleanValue(item models.Item, raw []string) (string, error)
	IsEmptyValue(item models.Item, stored string) bool
	// CompareValue reports whether a stored answer satisfies a dependvalue.
	CompareValue(item models.Item, stored, dependValue string) bool
	PrintableValue(item models.Item, stored string) string
	Analyse(item models.Item, values []string) Analysis
}

// Averager is implemented by types whose answers map to a number.
type Averager interface {
	NumericValue(item models.Item, stored string) (float64, bool)
}

// Analysis is the aggregate of all answers given to one item.
type Analysis struct {
	Total   int          `json:"total"`
	Options []OptionStat `json:"options,omitempty"`
	Average *float64     `json:"average,omitempty"`
	Values  []string     `json:"values,omitempty"`
}

// OptionStat counts how often a choice was picked.
type OptionStat struct {
	Index    int      `json:"index"`
	Text     string   `json:"text"`
	Rating   *float64 `json:"rating,omitempty"`
	Count    int      `json:"count"`
	Quotient float64  `json:"quotient"`
}

var registry = map[string]Type{}

func register(t Type) {
	registry[t.Name()] = t
}

func init() {
	register(multichoice{})
	register(multichoiceRated{})
	register(numeric{})
	register(textfield{})
	register(textarea{})
	register(label{})
	register(pagebreak{})
}

// Lookup returns the implementation registered for typ.
func Lookup(typ string) (Type, error) {
	t, ok := registry[typ]
	if !ok {
		return nil, ErrUnknownType
	}
	return t, nil
}

// Names lists the registered item types in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var htmlPolicy = bluemonday.UGCPolicy()

// SanitizeHTML strips unsafe markup from facilitator supplied rich text.
func SanitizeHTML(input string) string {
	return strings.TrimSpace(htmlPolicy.Sanitize(input))
}

func firstValue(raw []string) string {
	for _, value := range raw {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
