package items

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// Multichoice presentation separators.
const (
	choiceTypeSep   = ">>>>>"
	choiceLineSep   = "|"
	choiceAdjustSep = "<<<<<"
	ratedValueSep   = "####"
	ignoreEmptyOpt  = "i"
)

// Multichoice subtypes.
const (
	SubtypeRadio    = "r"
	SubtypeCheckbox = "c"
	SubtypeDropdown = "d"
)

type choiceInfo struct {
	subtype    string
	lines      []string
	horizontal bool
}

func parseChoice(presentation string) (choiceInfo, error) {
	head, rest, found := strings.Cut(presentation, choiceTypeSep)
	if !found {
		return choiceInfo{}, fmt.Errorf("%w: missing subtype separator", ErrInvalidPresentation)
	}
	info := choiceInfo{subtype: head}
	switch info.subtype {
	case SubtypeRadio, SubtypeCheckbox, SubtypeDropdown:
	default:
		return choiceInfo{}, fmt.Errorf("%w: subtype %q", ErrInvalidPresentation, head)
	}
	body, adjust, _ := strings.Cut(rest, choiceAdjustSep)
	info.horizontal = adjust == "1"
	for _, line := range strings.Split(body, choiceLineSep) {
		info.lines = append(info.lines, strings.TrimSpace(line))
	}
	if len(info.lines) == 0 || (len(info.lines) == 1 && info.lines[0] == "") {
		return choiceInfo{}, fmt.Errorf("%w: no options", ErrInvalidPresentation)
	}
	return info, nil
}

// ChoicePresentation builds a multichoice presentation string.
func ChoicePresentation(subtype string, options []string, horizontal bool) string {
	adjust := "0"
	if horizontal {
		adjust = "1"
	}
	return subtype + choiceTypeSep + strings.Join(options, choiceLineSep) + choiceAdjustSep + adjust
}

// ignoresEmpty reports whether unanswered choices are left out of the analysis.
func ignoresEmpty(item models.Item) bool {
	return strings.Contains(item.Options, ignoreEmptyOpt)
}

// selectedIndexes parses a stored choice answer, skipping the "not selected" zero.
func selectedIndexes(stored string) []int {
	var indexes []int
	for _, part := range strings.Split(stored, choiceLineSep) {
		idx, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || idx <= 0 {
			continue
		}
		indexes = append(indexes, idx)
	}
	return indexes
}

func cleanChoice(subtype string, count int, raw []string) (string, error) {
	var picked []int
	seen := map[int]bool{}
	for _, value := range raw {
		for _, part := range strings.Split(value, choiceLineSep) {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx > count {
				return "", fmt.Errorf("%w: option %q", ErrInvalidValue, part)
			}
			if idx == 0 || seen[idx] {
				continue
			}
			seen[idx] = true
			picked = append(picked, idx)
		}
	}
	if len(picked) == 0 {
		if subtype == SubtypeCheckbox {
			return "", nil
		}
		return "0", nil
	}
	if subtype != SubtypeCheckbox && len(picked) > 1 {
		return "", fmt.Errorf("%w: only one option may be selected", ErrInvalidValue)
	}
	sort.Ints(picked)
	parts := make([]string, len(picked))
	for i, idx := range picked {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, choiceLineSep), nil
}

func choiceEmpty(stored string) bool {
	return len(selectedIndexes(stored)) == 0
}

type multichoice struct{}

func (multichoice) Name() string           { return "multichoice" }
func (multichoice) HasValue() bool         { return true }
func (multichoice) CanSwitchRequire() bool { return true }
func (multichoice) DependCandidate() bool  { return true }

func (multichoice) ValidatePresentation(presentation string) error {
	_, err := parseChoice(presentation)
	return err
}

func (multichoice) CleanValue(item models.Item, raw []string) (string, error) {
	info, err := parseChoice(item.Presentation)
	if err != nil {
		return "", err
	}
	return cleanChoice(info.subtype, len(info.lines), raw)
}

func (multichoice) IsEmptyValue(_ models.Item, stored string) bool {
	return choiceEmpty(stored)
}

func (multichoice) CompareValue(item models.Item, stored, dependValue string) bool {
	info, err := parseChoice(item.Presentation)
	if err != nil {
		return false
	}
	for _, idx := range selectedIndexes(stored) {
		if idx <= len(info.lines) && info.lines[idx-1] == strings.TrimSpace(dependValue) {
			return true
		}
	}
	return false
}

func (multichoice) PrintableValue(item models.Item, stored string) string {
	info, err := parseChoice(item.Presentation)
	if err != nil {
		return stored
	}
	var texts []string
	for _, idx := range selectedIndexes(stored) {
		if idx <= len(info.lines) {
			texts = append(texts, info.lines[idx-1])
		}
	}
	return strings.Join(texts, "; ")
}

func (multichoice) Analyse(item models.Item, values []string) Analysis {
	info, err := parseChoice(item.Presentation)
	if err != nil {
		return Analysis{}
	}
	stats := make([]OptionStat, len(info.lines))
	for i, line := range info.lines {
		stats[i] = OptionStat{Index: i + 1, Text: line}
	}
	total := 0
	for _, value := range values {
		picked := selectedIndexes(value)
		if len(picked) == 0 && ignoresEmpty(item) {
			continue
		}
		total++
		for _, idx := range picked {
			if idx <= len(stats) {
				stats[idx-1].Count++
			}
		}
	}
	for i := range stats {
		if total > 0 {
			stats[i].Quotient = float64(stats[i].Count) / float64(total)
		}
	}
	return Analysis{Total: total, Options: stats}
}

type ratedLine struct {
	rating float64
	text   string
}

func parseRated(presentation string) (string, []ratedLine, error) {
	info, err := parseChoice(presentation)
	if err != nil {
		return "", nil, err
	}
	if info.subtype == SubtypeCheckbox {
		return "", nil, fmt.Errorf("%w: rated items cannot use checkboxes", ErrInvalidPresentation)
	}
	lines := make([]ratedLine, len(info.lines))
	for i, line := range info.lines {
		rating, text, found := strings.Cut(line, ratedValueSep)
		if !found {
			return "", nil, fmt.Errorf("%w: line %d has no rating", ErrInvalidPresentation, i+1)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(rating), 64)
		if err != nil {
			return "", nil, fmt.Errorf("%w: rating %q", ErrInvalidPresentation, rating)
		}
		lines[i] = ratedLine{rating: value, text: strings.TrimSpace(text)}
	}
	return info.subtype, lines, nil
}

type multichoiceRated struct{}

func (multichoiceRated) Name() string           { return "multichoicerated" }
func (multichoiceRated) HasValue() bool         { return true }
func (multichoiceRated) CanSwitchRequire() bool { return true }
func (multichoiceRated) DependCandidate() bool  { return true }

func (multichoiceRated) ValidatePresentation(presentation string) error {
	_, _, err := parseRated(presentation)
	return err
}

func (multichoiceRated) CleanValue(item models.Item, raw []string) (string, error) {
	subtype, lines, err := parseRated(item.Presentation)
	if err != nil {
		return "", err
	}
	return cleanChoice(subtype, len(lines), raw)
}

func (multichoiceRated) IsEmptyValue(_ models.Item, stored string) bool {
	return choiceEmpty(stored)
}

func (multichoiceRated) CompareValue(item models.Item, stored, dependValue string) bool {
	_, lines, err := parseRated(item.Presentation)
	if err != nil {
		return false
	}
	for _, idx := range selectedIndexes(stored) {
		if idx <= len(lines) && lines[idx-1].text == strings.TrimSpace(dependValue) {
			return true
		}
	}
	return false
}

func (multichoiceRated) PrintableValue(item models.Item, stored string) string {
	_, lines, err := parseRated(item.Presentation)
	if err != nil {
		return stored
	}
	for _, idx := range selectedIndexes(stored) {
		if idx <= len(lines) {
			return fmt.Sprintf("(%s) %s", strconv.FormatFloat(lines[idx-1].rating, 'f', -1, 64), lines[idx-1].text)
		}
	}
	return ""
}

func (multichoiceRated) NumericValue(item models.Item, stored string) (float64, bool) {
	_, lines, err := parseRated(item.Presentation)
	if err != nil {
		return 0, false
	}
	for _, idx := range selectedIndexes(stored) {
		if idx <= len(lines) {
			return lines[idx-1].rating, true
		}
	}
	return 0, false
}

func (multichoiceRated) Analyse(item models.Item, values []string) Analysis {
	_, lines, err := parseRated(item.Presentation)
	if err != nil {
		return Analysis{}
	}
	stats := make([]OptionStat, len(lines))
	for i, line := range lines {
		rating := line.rating
		stats[i] = OptionStat{Index: i + 1, Text: line.text, Rating: &rating}
	}
	total := 0
	sum := 0.0
	for _, value := range values {
		picked := selectedIndexes(value)
		if len(picked) == 0 {
			if ignoresEmpty(item) {
				continue
			}
			total++
			continue
		}
		total++
		idx := picked[0]
		if idx <= len(stats) {
			stats[idx-1].Count++
			sum += lines[idx-1].rating
		}
	}
	analysis := Analysis{Total: total, Options: stats}
	if total > 0 {
		for i := range stats {
			stats[i].Quotient = float64(stats[i].Count) / float64(total)
		}
		avg := sum / float64(total)
		analysis.Average = &avg
	}
	return analysis
}
