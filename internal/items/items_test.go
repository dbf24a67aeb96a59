package items

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-feedback-api/internal/models"
)

func TestLookupKnownAndUnknownTypes(t *testing.T) {
	for _, name := range []string{"multichoice", "multichoicerated", "numeric", "textfield", "textarea", "label", "pagebreak"} {
		typ, err := Lookup(name)
		require.NoError(t, err)
		require.Equal(t, name, typ.Name())
	}

	_, err := Lookup("captcha")
	require.ErrorIs(t, err, ErrUnknownType)
	require.Len(t, Names(), 7)
}

func TestMultichoiceCleanAndCompare(t *testing.T) {
	typ, _ := Lookup("multichoice")
	item := models.Item{Typ: "multichoice", Presentation: ChoicePresentation(SubtypeCheckbox, []string{"red", "green", "blue"}, false)}

	stored, err := typ.CleanValue(item, []string{"3", "1", "3"})
	require.NoError(t, err)
	require.Equal(t, "1|3", stored)
	require.True(t, typ.CompareValue(item, stored, "blue"))
	require.False(t, typ.CompareValue(item, stored, "green"))
	require.Equal(t, "red; blue", typ.PrintableValue(item, stored))

	_, err = typ.CleanValue(item, []string{"4"})
	require.ErrorIs(t, err, ErrInvalidValue)

	radio := models.Item{Typ: "multichoice", Presentation: "r>>>>>yes|no<<<<<1"}
	stored, err = typ.CleanValue(radio, nil)
	require.NoError(t, err)
	require.Equal(t, "0", stored)
	require.True(t, typ.IsEmptyValue(radio, stored))

	_, err = typ.CleanValue(radio, []string{"1", "2"})
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestMultichoiceAnalyseIgnoresEmptyWhenConfigured(t *testing.T) {
	typ, _ := Lookup("multichoice")
	item := models.Item{Typ: "multichoice", Presentation: "r>>>>>yes|no", Options: "i"}

	analysis := typ.Analyse(item, []string{"1", "1", "2", "0"})
	require.Equal(t, 3, analysis.Total)
	require.Equal(t, 2, analysis.Options[0].Count)
	require.InDelta(t, 2.0/3.0, analysis.Options[0].Quotient, 0.0001)

	item.Options = ""
	analysis = typ.Analyse(item, []string{"1", "1", "2", "0"})
	require.Equal(t, 4, analysis.Total)
}

func TestMultichoiceRatedAverage(t *testing.T) {
	typ, _ := Lookup("multichoicerated")
	item := models.Item{Typ: "multichoicerated", Presentation: "r>>>>>0####bad|5####good|10####great"}
	require.NoError(t, typ.ValidatePresentation(item.Presentation))
	require.ErrorIs(t, typ.ValidatePresentation("c>>>>>0####a"), ErrInvalidPresentation)

	analysis := typ.Analyse(item, []string{"2", "3", "3"})
	require.NotNil(t, analysis.Average)
	require.InDelta(t, 25.0/3.0, *analysis.Average, 0.0001)
	require.True(t, typ.CompareValue(item, "3", "great"))

	averager, ok := typ.(Averager)
	require.True(t, ok)
	value, ok := averager.NumericValue(item, "2")
	require.True(t, ok)
	require.Equal(t, 5.0, value)
}

func TestNumericRange(t *testing.T) {
	typ, _ := Lookup("numeric")
	item := models.Item{Typ: "numeric", Presentation: "1|10"}

	stored, err := typ.CleanValue(item, []string{"2,5"})
	require.NoError(t, err)
	require.Equal(t, "2.5", stored)

	_, err = typ.CleanValue(item, []string{"11"})
	require.ErrorIs(t, err, ErrInvalidValue)
	_, err = typ.CleanValue(item, []string{"abc"})
	require.ErrorIs(t, err, ErrInvalidValue)

	stored, err = typ.CleanValue(item, nil)
	require.NoError(t, err)
	require.True(t, typ.IsEmptyValue(item, stored))

	require.ErrorIs(t, typ.ValidatePresentation("10|1"), ErrInvalidPresentation)
	require.True(t, typ.CompareValue(item, "2.50", "2.5"))

	analysis := typ.Analyse(item, []string{"2", "4", ""})
	require.Equal(t, 2, analysis.Total)
	require.Equal(t, 3.0, *analysis.Average)
}

func TestTextfieldMaxLength(t *testing.T) {
	typ, _ := Lookup("textfield")
	item := models.Item{Typ: "textfield", Presentation: "30|5"}

	stored, err := typ.CleanValue(item, []string{"  hello "})
	require.NoError(t, err)
	require.Equal(t, "hello", stored)

	_, err = typ.CleanValue(item, []string{"too long"})
	require.ErrorIs(t, err, ErrInvalidValue)
}

func TestLabelAndPagebreakHaveNoValue(t *testing.T) {
	for _, name := range []string{"label", "pagebreak"} {
		typ, _ := Lookup(name)
		require.False(t, typ.HasValue())
		require.False(t, typ.CanSwitchRequire())
		require.False(t, typ.DependCandidate())
	}
}

func TestSanitizeHTMLDropsScripts(t *testing.T) {
	require.Equal(t, "<b>hi</b>", SanitizeHTML(`<b>hi</b><script>alert(1)</script>`))
}
