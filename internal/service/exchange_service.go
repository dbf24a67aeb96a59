package service

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-feedback-api/internal/dto"
	"github.com/noah-isme/gema-feedback-api/internal/items"
	"github.com/noah-isme/gema-feedback-api/internal/models"
	"github.com/noah-isme/gema-feedback-api/internal/repository"
)

// Accepted XML exchange versions.
const (
	ExchangeVersion       = "200701"
	LegacyExchangeVersion = "200607"
	exchangeComment       = "XML-Importfile for mod/feedback"
)

// Root elements accepted on import. Exports always use the first.
var exchangeRoots = []string{"FEEDBACK", "gquiz"}

// ExchangeService moves item sets in and out of the XML exchange format.
type ExchangeService interface {
	Export(ctx context.Context, feedbackID uint) ([]byte, error)
	Import(ctx context.Context, feedbackID uint, document []byte, deleteOld bool, actor Actor) (dto.ImportResponse, error)
}

type cdata struct {
	Value string `xml:",cdata"`
}

type exchangeItem struct {
	Type         string `xml:"TYPE,attr"`
	Required     string `xml:"REQUIRED,attr"`
	ItemID       cdata  `xml:"ITEMID"`
	ItemText     cdata  `xml:"ITEMTEXT"`
	ItemLabel    cdata  `xml:"ITEMLABEL"`
	Presentation cdata  `xml:"PRESENTATION"`
	Options      cdata  `xml:"OPTIONS"`
	DependItem   cdata  `xml:"DEPENDITEM"`
	DependValue  cdata  `xml:"DEPENDVALUE"`
}

type exchangeDocument struct {
	XMLName xml.Name
	Version string         `xml:"VERSION,attr"`
	Comment string         `xml:"COMMENT,attr"`
	Items   []exchangeItem `xml:"ITEMS>ITEM"`
}

// legacyTypes maps item types of the oldest exchange version to current
// types and their presentation prefix.
var legacyTypes = map[string]struct {
	typ    string
	prefix string
}{
	"radio":         {typ: "multichoice", prefix: "r>>>>>"},
	"check":         {typ: "multichoice", prefix: "c>>>>>"},
	"dropdown":      {typ: "multichoice", prefix: "d>>>>>"},
	"radiorated":    {typ: "multichoicerated", prefix: "r>>>>>"},
	"dropdownrated": {typ: "multichoicerated", prefix: "d>>>>>"},
}

type exchangeService struct {
	stores   Stores
	events   EventRecorder
	analysis AnalysisInvalidator
	logger   zerolog.Logger
}

// NewExchangeService builds the XML import/export service.
func NewExchangeService(stores Stores, events EventRecorder, analysis AnalysisInvalidator, logger zerolog.Logger) ExchangeService {
	return &exchangeService{
		stores:   stores,
		events:   eventsOrNop(events),
		analysis: analysis,
		logger:   logger.With().Str("component", "exchange_service").Logger(),
	}
}

func (s *exchangeService) ensureFeedback(ctx context.Context, feedbackID uint) error {
	if _, err := s.stores.Feedbacks.GetByID(ctx, feedbackID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrFeedbackNotFound
		}
		return err
	}
	return nil
}

func (s *exchangeService) Export(ctx context.Context, feedbackID uint) ([]byte, error) {
	if err := s.ensureFeedback(ctx, feedbackID); err != nil {
		return nil, err
	}
	list, err := s.stores.Items.List(ctx, repository.ItemOwner{FeedbackID: feedbackID})
	if err != nil {
		return nil, err
	}

	document := exchangeDocument{XMLName: xml.Name{Local: exchangeRoots[0]}, Version: ExchangeVersion, Comment: exchangeComment, Items: make([]exchangeItem, 0, len(list))}
	for _, item := range list {
		required := "0"
		if item.Required {
			required = "1"
		}
		document.Items = append(document.Items, exchangeItem{
			Type:         item.Typ,
			Required:     required,
			ItemID:       cdata{strconv.FormatUint(uint64(item.ID), 10)},
			ItemText:     cdata{item.Name},
			ItemLabel:    cdata{item.Label},
			Presentation: cdata{item.Presentation},
			Options:      cdata{item.Options},
			DependItem:   cdata{strconv.FormatUint(uint64(item.DependItem), 10)},
			DependValue:  cdata{item.DependValue},
		})
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8" ?>` + "\n")
	encoder := xml.NewEncoder(&buf)
	encoder.Indent("", "     ")
	if err := encoder.Encode(document); err != nil {
		return nil, err
	}
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

type importedItem struct {
	item      models.Item
	oldID     uint
	oldDepend uint
}

// parseExchange decodes and validates a document without touching storage.
func parseExchange(document []byte) ([]importedItem, error) {
	var parsed exchangeDocument
	if err := xml.Unmarshal(document, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	if !slices.Contains(exchangeRoots, parsed.XMLName.Local) {
		return nil, fmt.Errorf("%w: unexpected root element <%s>", ErrInvalidImport, parsed.XMLName.Local)
	}
	legacy := false
	switch parsed.Version {
	case ExchangeVersion:
	case LegacyExchangeVersion:
		legacy = true
	default:
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidImport, parsed.Version)
	}

	result := make([]importedItem, 0, len(parsed.Items))
	for index, entry := range parsed.Items {
		typName := strings.TrimSpace(entry.Type)
		presentation := strings.TrimSpace(entry.Presentation.Value)
		if legacy {
			if mapped, ok := legacyTypes[typName]; ok {
				typName = mapped.typ
				presentation = mapped.prefix + presentation
			}
		}

		typ, err := items.Lookup(typName)
		if err != nil {
			return nil, fmt.Errorf("%w: item %d has unknown type %q", ErrInvalidImport, index+1, typName)
		}
		if typName == models.ItemTypeLabel {
			presentation = items.SanitizeHTML(presentation)
		}
		if err := typ.ValidatePresentation(presentation); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrInvalidImport, index+1, err)
		}

		item := models.Item{
			Typ:          typName,
			Name:         items.SanitizeHTML(entry.ItemText.Value),
			Presentation: presentation,
			HasValue:     typ.HasValue(),
			Required:     strings.TrimSpace(entry.Required) == "1" && typ.CanSwitchRequire(),
		}
		imported := importedItem{item: item}
		if !legacy {
			imported.item.Label = strings.TrimSpace(entry.ItemLabel.Value)
			imported.item.Options = strings.TrimSpace(entry.Options.Value)
			imported.item.DependValue = strings.TrimSpace(entry.DependValue.Value)
			imported.oldID = parseUint(entry.ItemID.Value)
			imported.oldDepend = parseUint(entry.DependItem.Value)
		}
		result = append(result, imported)
	}
	return result, nil
}

func parseUint(raw string) uint {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0
	}
	return uint(value)
}

func (s *exchangeService) Import(ctx context.Context, feedbackID uint, document []byte, deleteOld bool, actor Actor) (dto.ImportResponse, error) {
	if err := s.ensureFeedback(ctx, feedbackID); err != nil {
		return dto.ImportResponse{}, err
	}
	parsed, err := parseExchange(document)
	if err != nil {
		return dto.ImportResponse{}, err
	}

	source := make([]models.Item, len(parsed))
	for index, entry := range parsed {
		source[index] = entry.item
		source[index].ID = entry.oldID
		source[index].DependItem = entry.oldDepend
		source[index].Position = index + 1
	}
	created, err := s.stores.Items.ImportItems(ctx, feedbackID, source, deleteOld)
	if err != nil {
		return dto.ImportResponse{}, err
	}

	if s.analysis != nil {
		s.analysis.Invalidate(ctx, feedbackID)
	}
	s.events.Record(ctx, FeedbackEvent{
		Name:       models.EventItemsImported,
		FeedbackID: feedbackID,
		UserID:     actor.UserID,
		Metadata:   map[string]interface{}{"items": len(created), "delete_old": deleteOld},
	})
	s.logger.Info().Uint("feedback_id", feedbackID).Int("items", len(created)).Bool("delete_old", deleteOld).Msg("items imported")

	return dto.ImportResponse{Imported: len(created), Items: dto.NewItemResponseSlice(created)}, nil
}
