package service

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/items"
	"github.com/noah-isme/gema-feedback-api/internal/models"
)

// itemLayout indexes the ordered items of a feedback for dependency checks.
type itemLayout struct {
	items []models.Item
	index map[uint]int
}

func newItemLayout(list []models.Item) itemLayout {
	index := make(map[uint]int, len(list))
	for i, item := range list {
		index[item.ID] = i
	}
	return itemLayout{items: list, index: index}
}

// dependencyHasError reports a dependitem that is missing, not placed before
// the item or not separated from it by a pagebreak.
func (l itemLayout) dependencyHasError(item models.Item) bool {
	if item.DependItem == 0 {
		return false
	}
	dependIdx, ok := l.index[item.DependItem]
	if !ok {
		return true
	}
	itemIdx, ok := l.index[item.ID]
	if !ok || dependIdx >= itemIdx {
		return true
	}
	for i := dependIdx + 1; i < itemIdx; i++ {
		if l.items[i].IsPagebreak() {
			return false
		}
	}
	return true
}

// canSee walks the dependency chain of item against values. Broken
// dependencies leave the item visible. A chain that revisits an item hides it.
func (l itemLayout) canSee(item models.Item, values map[uint]string) bool {
	visited := map[uint]bool{}
	for item.DependItem != 0 {
		if visited[item.ID] {
			return false
		}
		visited[item.ID] = true

		if l.dependencyHasError(item) {
			return true
		}
		dependItem := l.items[l.index[item.DependItem]]
		stored, ok := values[dependItem.ID]
		if !ok {
			return false
		}
		typ, err := items.Lookup(dependItem.Typ)
		if err != nil || !typ.CompareValue(dependItem, stored, item.DependValue) {
			return false
		}
		item = dependItem
	}
	return true
}

// completion drives one caller through the pages of a feedback.
type completion struct {
	*Structure
	now func() time.Time

	tmp        *models.CompletedTmp
	tmpLoaded  bool
	tmpValues  []models.ValueTmp
	valuesRead bool

	last       *models.Completed
	lastLoaded bool
	lastValues map[uint]string
}

func newCompletion(structure *Structure, now func() time.Time) *completion {
	return &completion{Structure: structure, now: now}
}

// CurrentTmp returns the open staging row of the caller, nil when none exists.
func (c *completion) CurrentTmp(ctx context.Context) (*models.CompletedTmp, error) {
	if c.tmpLoaded {
		return c.tmp, nil
	}
	if c.actor.IsGuest() && c.actor.GuestID == "" {
		c.tmpLoaded = true
		return nil, nil
	}
	tmp, err := c.stores.Staging.FindCurrent(ctx, c.feedback.ID, c.actor.UserID, c.actor.GuestID, c.courseID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c.tmpLoaded = true
	if err == nil {
		c.tmp = &tmp
	}
	return c.tmp, nil
}

// UnfinishedResponses lists the staged values of the caller.
func (c *completion) UnfinishedResponses(ctx context.Context) ([]models.ValueTmp, error) {
	if c.valuesRead {
		return c.tmpValues, nil
	}
	tmp, err := c.CurrentTmp(ctx)
	if err != nil {
		return nil, err
	}
	values := []models.ValueTmp{}
	if tmp != nil {
		values, err = c.stores.Staging.ListValues(ctx, tmp.ID)
		if err != nil {
			return nil, err
		}
	}
	c.tmpValues = values
	c.valuesRead = true
	return values, nil
}

func (c *completion) stagedValueMap(ctx context.Context) (map[uint]string, error) {
	values, err := c.UnfinishedResponses(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[uint]string, len(values))
	for _, value := range values {
		result[value.ItemID] = value.Value
	}
	return result, nil
}

// LastCompleted returns the latest identified response of the caller in the
// current course, nil for guests and when none exists.
func (c *completion) LastCompleted(ctx context.Context) (*models.Completed, error) {
	if c.lastLoaded {
		return c.last, nil
	}
	if c.actor.IsGuest() {
		c.lastLoaded = true
		return nil, nil
	}
	completed, err := c.stores.Completeds.FindLast(ctx, c.feedback.ID, c.actor.UserID, c.courseID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	c.lastLoaded = true
	if err == nil {
		c.last = &completed
	}
	return c.last, nil
}

// FinishedResponses lists the values of the last identified response.
func (c *completion) FinishedResponses(ctx context.Context) ([]models.Value, error) {
	last, err := c.LastCompleted(ctx)
	if err != nil || last == nil {
		return []models.Value{}, err
	}
	values, err := c.stores.Completeds.ListValues(ctx, []uint{last.ID})
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = []models.Value{}
	}
	return values, nil
}

func (c *completion) completedValueMap(ctx context.Context) (map[uint]string, error) {
	if c.lastValues != nil {
		return c.lastValues, nil
	}
	values, err := c.FinishedResponses(ctx)
	if err != nil {
		return nil, err
	}
	result := make(map[uint]string, len(values))
	for _, value := range values {
		result[value.ItemID] = value.Value
	}
	c.lastValues = result
	return result, nil
}

// dependencyValues are the answers dependencies are evaluated against: the
// staged ones while a response is in progress, otherwise the last submitted.
func (c *completion) dependencyValues(ctx context.Context) (map[uint]string, error) {
	tmp, err := c.CurrentTmp(ctx)
	if err != nil {
		return nil, err
	}
	if tmp != nil {
		return c.stagedValueMap(ctx)
	}
	return c.completedValueMap(ctx)
}

// Pages splits the items on pagebreaks. With visibleOnly, items hidden by
// their dependency are left out while page indexes stay stable.
func (c *completion) Pages(ctx context.Context, visibleOnly bool) ([][]models.Item, error) {
	all, err := c.Items(ctx, false)
	if err != nil {
		return nil, err
	}

	var values map[uint]string
	if visibleOnly {
		values, err = c.dependencyValues(ctx)
		if err != nil {
			return nil, err
		}
	}
	layout := newItemLayout(all)

	pages := [][]models.Item{{}}
	sizes := []int{0}
	for _, item := range all {
		if item.IsPagebreak() {
			pages = append(pages, []models.Item{})
			sizes = append(sizes, 0)
			continue
		}
		last := len(pages) - 1
		sizes[last]++
		if visibleOnly && !layout.canSee(item, values) {
			continue
		}
		pages[last] = append(pages[last], item)
	}

	for len(pages) > 1 && sizes[len(pages)-1] == 0 {
		pages = pages[:len(pages)-1]
		sizes = sizes[:len(sizes)-1]
	}
	return pages, nil
}

// NextPage returns the first non empty page after page. strict evaluates
// dependencies against the current answers.
func (c *completion) NextPage(ctx context.Context, page int, strict bool) (*int, error) {
	pages, err := c.Pages(ctx, strict)
	if err != nil {
		return nil, err
	}
	for i := page + 1; i < len(pages); i++ {
		if len(pages[i]) > 0 {
			next := i
			return &next, nil
		}
	}
	return nil, nil
}

// PreviousPage returns the last non empty page before page.
func (c *completion) PreviousPage(ctx context.Context, page int, strict bool) (*int, error) {
	if page <= 0 {
		return nil, nil
	}
	pages, err := c.Pages(ctx, strict)
	if err != nil {
		return nil, err
	}
	if page > len(pages) {
		page = len(pages)
	}
	for i := page - 1; i >= 0; i-- {
		if len(pages[i]) > 0 {
			previous := i
			return &previous, nil
		}
	}
	return nil, nil
}

// ResumePage returns the page holding the first item after the furthest
// staged answer. Without staged answers the first page is returned, nil
// means every value item was already answered.
func (c *completion) ResumePage(ctx context.Context) (*int, error) {
	tmp, err := c.CurrentTmp(ctx)
	if err != nil {
		return nil, err
	}
	if tmp == nil {
		first := 0
		return &first, nil
	}

	staged, err := c.stagedValueMap(ctx)
	if err != nil {
		return nil, err
	}
	all, err := c.Items(ctx, false)
	if err != nil {
		return nil, err
	}
	lastPosition := 0
	for _, item := range all {
		if _, ok := staged[item.ID]; ok && item.HasValue && item.Position > lastPosition {
			lastPosition = item.Position
		}
	}

	pages, err := c.Pages(ctx, true)
	if err != nil {
		return nil, err
	}
	for index, page := range pages {
		for _, item := range page {
			if item.Position > lastPosition {
				resume := index
				return &resume, nil
			}
		}
	}
	return nil, nil
}

func (c *completion) createTmp(ctx context.Context) (*models.CompletedTmp, error) {
	tmp := models.CompletedTmp{
		FeedbackID:        c.feedback.ID,
		UserID:            c.actor.UserID,
		CourseID:          c.ResponseCourseID(),
		AnonymousResponse: c.feedback.Anonymous,
		TimeModified:      c.now(),
	}
	if c.actor.IsGuest() {
		tmp.GuestID = c.actor.GuestID
	}

	var seed []models.ValueTmp
	finished, err := c.FinishedResponses(ctx)
	if err != nil {
		return nil, err
	}
	for _, value := range finished {
		seed = append(seed, models.ValueTmp{ItemID: value.ItemID, CourseID: value.CourseID, Value: value.Value})
	}

	if err := c.stores.Staging.Create(ctx, &tmp, seed); err != nil {
		return nil, err
	}
	c.tmp = &tmp
	c.tmpLoaded = true
	c.valuesRead = false
	return c.tmp, nil
}

var responseNamePattern = regexp.MustCompile(`^([a-z]+)_(\d+)(?:\[[^\]]*\])?$`)

// groupResponses collects submitted fields per item id.
func groupResponses(inputs []dto.ResponseInput) map[uint][]string {
	grouped := make(map[uint][]string, len(inputs))
	for _, input := range inputs {
		itemID := input.ItemID
		if itemID == 0 {
			match := responseNamePattern.FindStringSubmatch(input.Name)
			if match == nil {
				continue
			}
			parsed, err := strconv.ParseUint(match[2], 10, 64)
			if err != nil {
				continue
			}
			itemID = uint(parsed)
		}
		grouped[itemID] = append(grouped[itemID], input.Value)
	}
	return grouped
}

type pageOutcome struct {
	JumpTo    int
	Completed *models.Completed
}

// ProcessPage validates and stages the answers of one page, then moves
// backwards, forwards or submits when no page follows.
func (c *completion) ProcessPage(ctx context.Context, page int, inputs []dto.ResponseInput, goPrevious bool) (pageOutcome, error) {
	pages, err := c.Pages(ctx, true)
	if err != nil {
		return pageOutcome{}, err
	}
	if page < 0 || page >= len(pages) {
		return pageOutcome{}, ErrInvalidPage
	}

	submitted := groupResponses(inputs)
	problems := ResponseErrors{}
	staged := make([]models.ValueTmp, 0, len(pages[page]))
	for _, item := range pages[page] {
		if !item.HasValue {
			continue
		}
		typ, err := items.Lookup(item.Typ)
		if err != nil {
			problems[item.ID] = err.Error()
			continue
		}
		cleaned, err := typ.CleanValue(item, submitted[item.ID])
		if err != nil {
			problems[item.ID] = err.Error()
			continue
		}
		if item.Required && !goPrevious && typ.IsEmptyValue(item, cleaned) {
			problems[item.ID] = "required"
			continue
		}
		staged = append(staged, models.ValueTmp{ItemID: item.ID, CourseID: c.ResponseCourseID(), Value: cleaned})
	}
	if len(problems) > 0 && !goPrevious {
		return pageOutcome{}, problems
	}

	tmp, err := c.CurrentTmp(ctx)
	if err != nil {
		return pageOutcome{}, err
	}
	if tmp == nil {
		if tmp, err = c.createTmp(ctx); err != nil {
			return pageOutcome{}, err
		}
	} else if err := c.stores.Staging.Touch(ctx, tmp.ID, c.now()); err != nil {
		return pageOutcome{}, err
	}
	if err := c.stores.Staging.SaveValues(ctx, tmp.ID, staged); err != nil {
		return pageOutcome{}, err
	}
	c.valuesRead = false

	if goPrevious {
		previous, err := c.PreviousPage(ctx, page, true)
		if err != nil {
			return pageOutcome{}, err
		}
		outcome := pageOutcome{}
		if previous != nil {
			outcome.JumpTo = *previous
		}
		return outcome, nil
	}

	next, err := c.NextPage(ctx, page, true)
	if err != nil {
		return pageOutcome{}, err
	}
	if next != nil {
		return pageOutcome{JumpTo: *next}, nil
	}

	completed, err := c.SaveResponse(ctx)
	if err != nil {
		return pageOutcome{}, err
	}
	return pageOutcome{Completed: &completed}, nil
}

// SaveResponse promotes the staged answers. Only values of items that are
// visible under the staged answers are kept. The caller's last identified
// response is overwritten when one exists.
func (c *completion) SaveResponse(ctx context.Context) (models.Completed, error) {
	tmp, err := c.CurrentTmp(ctx)
	if err != nil {
		return models.Completed{}, err
	}
	if tmp == nil {
		return models.Completed{}, ErrNothingToSubmit
	}

	stagedList, err := c.UnfinishedResponses(ctx)
	if err != nil {
		return models.Completed{}, err
	}
	staged := make(map[uint]string, len(stagedList))
	for _, value := range stagedList {
		staged[value.ItemID] = value.Value
	}

	all, err := c.Items(ctx, false)
	if err != nil {
		return models.Completed{}, err
	}
	layout := newItemLayout(all)

	values := make([]models.Value, 0, len(stagedList))
	for _, value := range stagedList {
		idx, ok := layout.index[value.ItemID]
		if !ok {
			continue
		}
		item := layout.items[idx]
		if !item.HasValue || !layout.canSee(item, staged) {
			continue
		}
		values = append(values, models.Value{
			ItemID:       value.ItemID,
			CourseID:     value.CourseID,
			Value:        value.Value,
			TmpCompleted: tmp.ID,
		})
	}

	last, err := c.LastCompleted(ctx)
	if err != nil {
		return models.Completed{}, err
	}
	var target models.Completed
	if last != nil {
		target = *last
		target.Values = nil
		target.TimeModified = c.now()
	} else {
		target = models.Completed{
			FeedbackID:        c.feedback.ID,
			UserID:            tmp.UserID,
			CourseID:          tmp.CourseID,
			AnonymousResponse: tmp.AnonymousResponse,
			TimeModified:      c.now(),
		}
	}

	if err := c.stores.Staging.Promote(ctx, *tmp, &target, values); err != nil {
		return models.Completed{}, err
	}
	c.tmp, c.tmpLoaded = nil, true
	c.tmpValues, c.valuesRead = []models.ValueTmp{}, true
	c.last, c.lastLoaded, c.lastValues = nil, false, nil

	if err := newMarkCalculator(c.stores).Score(ctx, c.feedback.ID, []uint{target.ID}); err != nil {
		return models.Completed{}, err
	}
	if err := c.ShuffleAnonymResponses(ctx); err != nil {
		return models.Completed{}, err
	}

	stored, err := c.stores.Completeds.GetByID(ctx, target.ID)
	if err != nil {
		return target, nil
	}
	stored.Values = nil
	return stored, nil
}

// CanSubmit reports whether a new response may be stored.
func (c *completion) CanSubmit(ctx context.Context) (bool, error) {
	if c.feedback.MultipleSubmit {
		return true, nil
	}
	submitted, err := c.IsAlreadySubmitted(ctx, false)
	if err != nil {
		return false, err
	}
	return !submitted, nil
}
