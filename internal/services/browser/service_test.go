package browser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"collections/internal/adapters/dataservice"
	"collections/internal/adapters/kafka"
	"collections/internal/domain/collection"
	"collections/internal/events"
	"collections/internal/testsupport"
	"collections/pkg/errors"
	"collections/pkg/logger"
	"collections/pkg/options"
	"collections/pkg/querystate"
	"collections/pkg/smartfilter"
	"collections/pkg/templates"
)

type fixture struct {
	fake *testsupport.FakeDataService
	svc  *Service
}

func newFixture(t *testing.T, pageSize int, producer events.Producer) *fixture {
	t.Helper()
	fake := testsupport.NewFakeDataService(t)

	client, err := dataservice.New(dataservice.Config{
		BaseURL:  fake.URL,
		Timeout:  2 * time.Second,
		PageSize: pageSize,
		Retry:    dataservice.RetryConfig{MaxRetries: 0},
	}, logger.Nop())
	require.NoError(t, err)

	svc := NewService(
		client,
		options.NewResolver(options.ResolverConfig{}, logger.Nop()),
		templates.NewCopy(templates.Get(), "en", logger.Nop()),
		events.NewPublisher(producer, logger.Nop()),
		Config{
			PageSize:       pageSize,
			SearchDelay:    20 * time.Millisecond,
			TextDelay:      30 * time.Millisecond,
			RequestTimeout: 2 * time.Second,
		},
		logger.Nop(),
	)
	return &fixture{fake: fake, svc: svc}
}

func findView(t *testing.T, p Panel, key querystate.Key) smartfilter.View {
	t.Helper()
	for _, s := range p.Sections {
		for _, v := range s.Filters {
			if v.Key == key {
				return v
			}
		}
	}
	t.Fatalf("filter %s not on panel", key)
	return smartfilter.View{}
}

func labels(opts []options.Option) []string {
	out := make([]string, 0, len(opts))
	for _, o := range opts {
		out = append(out, o.Label)
	}
	return out
}

func TestPanelDisablesChildrenWithoutParent(t *testing.T) {
	fx := newFixture(t, 20, nil)

	panel, err := fx.svc.Panel(context.Background(), querystate.Values{}, language.English)
	require.NoError(t, err)
	require.Len(t, panel.Sections, len(collection.Sections()))
	assert.Equal(t, "Taxonomy", panel.Sections[1].Label)

	country := findView(t, panel, collection.CountryID)
	assert.False(t, country.Disabled)
	assert.Equal(t, []string{"Peru", "Brazil", "Colombia"}, labels(country.Options))
	assert.Equal(t, "Search country", country.Placeholder)

	department := findView(t, panel, collection.DepartmentID)
	assert.True(t, department.Disabled)
	assert.Equal(t, "Select a country first", department.Reason)
	assert.Empty(t, department.Options)
	assert.Equal(t, 0, fx.fake.ListCalls("departments"), "disabled filters do not load options")

	species := findView(t, panel, collection.SpeciesID)
	assert.False(t, species.Disabled, "species is searchable without a genus")
	assert.True(t, species.AlwaysOpen)

	sex := findView(t, panel, collection.SexID)
	assert.Equal(t, []string{"Male", "Female"}, labels(sex.Options))
}

func TestPanelResolvesSelectionFromLoadedPage(t *testing.T) {
	fx := newFixture(t, 20, nil)

	panel, err := fx.svc.Panel(context.Background(), querystate.Values{collection.CountryID: "PE"}, language.English)
	require.NoError(t, err)

	country := findView(t, panel, collection.CountryID)
	assert.Equal(t, []options.Option{{Label: "Peru", Value: "PE"}}, country.Selected)
	assert.True(t, country.Clearable)
	assert.Equal(t, 0, fx.fake.GetCalls("countries"))

	department := findView(t, panel, collection.DepartmentID)
	assert.False(t, department.Disabled)
	assert.Equal(t, []string{"Loreto", "Cusco"}, labels(department.Options))
}

func TestPanelResolvesSelectionOutsidePageOnce(t *testing.T) {
	fx := newFixture(t, 1, nil)
	values := querystate.Values{collection.CountryID: "CO"}

	for i := 0; i < 3; i++ {
		v, err := fx.svc.Filter(context.Background(), values, collection.CountryID, language.English)
		require.NoError(t, err)
		assert.Equal(t, []string{"Peru"}, labels(v.Options))
		assert.Equal(t, []options.Option{{Label: "Colombia", Value: "CO"}}, v.Selected)
		assert.True(t, v.HasMore)
		assert.Equal(t, "Show 2 more", v.MoreLabel)
	}
	assert.Equal(t, 1, fx.fake.GetCalls("countries"))
}

func TestPanelDegradesWhenSelectionCannotBeLoaded(t *testing.T) {
	fx := newFixture(t, 1, nil)
	values := querystate.Values{collection.CountryID: "EC"}

	v, err := fx.svc.Filter(context.Background(), values, collection.CountryID, language.English)
	require.NoError(t, err)
	assert.Equal(t, []options.Option{{Label: "EC", Value: "EC"}}, v.Selected)
}

func TestPanelIgnoresOrphanedChild(t *testing.T) {
	fx := newFixture(t, 20, nil)

	v, err := fx.svc.Filter(context.Background(), querystate.Values{collection.DepartmentID: "7"}, collection.DepartmentID, language.English)
	require.NoError(t, err)
	assert.True(t, v.Disabled)
	assert.Empty(t, v.Value)
	assert.Empty(t, v.Selected)
}

func TestPanelSurvivesDataServiceOutage(t *testing.T) {
	fx := newFixture(t, 20, nil)
	fx.fake.Fail("countries", true)

	v, err := fx.svc.Filter(context.Background(), querystate.Values{collection.CountryID: "PE"}, collection.CountryID, language.English)
	require.NoError(t, err)
	assert.Empty(t, v.Options)
	assert.Equal(t, []options.Option{{Label: "PE", Value: "PE"}}, v.Selected)
}

func TestPanelSpanishCopy(t *testing.T) {
	fx := newFixture(t, 20, nil)
	es := fx.svc.Locale("es-PE")

	panel, err := fx.svc.Panel(context.Background(), querystate.Values{collection.CountryID: "PE"}, es)
	require.NoError(t, err)
	assert.Equal(t, "es", panel.Locale)

	country := findView(t, panel, collection.CountryID)
	assert.Equal(t, "País", country.Label)
	assert.Equal(t, []options.Option{{Label: "Perú", Value: "PE"}}, country.Selected)

	province := findView(t, panel, collection.ProvinceID)
	assert.Equal(t, "Primero selecciona departamento", province.Reason)
}

func TestApplyCascadesAcrossNavigations(t *testing.T) {
	fx := newFixture(t, 20, nil)
	ctx := context.Background()
	set := func(v string) smartfilter.Input { return smartfilter.Input{Action: smartfilter.ActionSet, Value: v} }

	r, err := fx.svc.Apply(ctx, querystate.Values{}, collection.CountryID, set("PE"), language.English)
	require.NoError(t, err)
	assert.True(t, r.Changed)
	assert.Equal(t, "countryId=PE", r.Query)

	r, err = fx.svc.Apply(ctx, r.Values, collection.DepartmentID, set("7"), language.English)
	require.NoError(t, err)
	assert.Equal(t, "countryId=PE&departmentId=7", r.Query)

	r, err = fx.svc.Apply(ctx, r.Values, collection.CountryID, set("BR"), language.English)
	require.NoError(t, err)
	assert.Equal(t, "countryId=BR", r.Query)
	assert.Equal(t, querystate.Changes{
		collection.CountryID:    "BR",
		collection.DepartmentID: "",
		collection.ProvinceID:   "",
		collection.DistrictID:   "",
		collection.LocalityID:   "",
	}, r.Changes)

	department, err := fx.svc.Filter(ctx, r.Values, collection.DepartmentID, language.English)
	require.NoError(t, err)
	assert.Empty(t, department.Value)
	assert.Equal(t, []string{"Amazonas"}, labels(department.Options))
}

func TestApplyResetsPage(t *testing.T) {
	fx := newFixture(t, 20, nil)
	values := querystate.Values{collection.ClassID: "42", querystate.PageKey: "3", collection.View: "grid"}

	r, err := fx.svc.Apply(context.Background(), values, collection.HasEggs, smartfilter.Input{Action: smartfilter.ActionToggle}, language.English)
	require.NoError(t, err)
	assert.Equal(t, "classId=42&hasEggs=1&view=grid", r.Query)
}

func TestApplySuppressesNoop(t *testing.T) {
	fx := newFixture(t, 20, nil)
	values := querystate.Values{collection.SearchTerm: "rana"}

	r, err := fx.svc.Apply(context.Background(), values, collection.SearchTerm, smartfilter.Input{Value: "  rana "}, language.English)
	require.NoError(t, err)
	assert.False(t, r.Changed)
	assert.Equal(t, "searchTerm=rana", r.Query)

	r, err = fx.svc.Apply(context.Background(), values, collection.OrderID, smartfilter.Input{Action: smartfilter.ActionClear}, language.English)
	require.NoError(t, err)
	assert.False(t, r.Changed)
}

func TestApplyTogglesSelectedOptionOff(t *testing.T) {
	fx := newFixture(t, 20, nil)
	values := querystate.Values{collection.ClassID: "42", collection.OrderID: "5"}

	r, err := fx.svc.Apply(context.Background(), values, collection.ClassID, smartfilter.Input{Action: smartfilter.ActionToggle, Value: "42"}, language.English)
	require.NoError(t, err)
	assert.True(t, r.Changed)
	assert.Equal(t, "", r.Query)
}

func TestApplySameValueTwiceKeepsDescendants(t *testing.T) {
	fx := newFixture(t, 20, nil)
	ctx := context.Background()
	set := smartfilter.Input{Action: smartfilter.ActionSet, Value: "PE"}

	once, err := fx.svc.Apply(ctx, querystate.Values{}, collection.CountryID, set, language.English)
	require.NoError(t, err)
	twice, err := fx.svc.Apply(ctx, once.Values, collection.CountryID, set, language.English)
	require.NoError(t, err)
	assert.False(t, twice.Changed)
	assert.Equal(t, once.Query, twice.Query)

	values := querystate.Values{collection.CountryID: "PE", collection.DepartmentID: "7"}
	r, err := fx.svc.Apply(ctx, values, collection.CountryID, set, language.English)
	require.NoError(t, err)
	assert.False(t, r.Changed)
	assert.Equal(t, "countryId=PE&departmentId=7", r.Query)
}

func TestApplyClearsOrphanedValue(t *testing.T) {
	fx := newFixture(t, 20, nil)
	values := querystate.Values{collection.OrderID: "99", collection.FamilyID: "9"}

	r, err := fx.svc.Apply(context.Background(), values, collection.OrderID, smartfilter.Input{Action: smartfilter.ActionClear}, language.English)
	require.NoError(t, err)
	assert.True(t, r.Changed)
	assert.Equal(t, "", r.Query)
}

func TestApplyRejectsInvalidInput(t *testing.T) {
	fx := newFixture(t, 20, nil)
	ctx := context.Background()

	_, err := fx.svc.Apply(ctx, querystate.Values{}, "colourId", smartfilter.Input{Value: "1"}, language.English)
	assert.True(t, errors.Is(err, errors.ErrUnknownFilter))

	_, err = fx.svc.Apply(ctx, querystate.Values{}, collection.SexID, smartfilter.Input{Value: "9"}, language.English)
	assert.True(t, errors.Is(err, errors.ErrInvalidChoice))

	_, err = fx.svc.Apply(ctx, querystate.Values{}, collection.DepartmentID, smartfilter.Input{Value: "7"}, language.English)
	assert.True(t, errors.Is(err, errors.ErrPrerequisiteMissing))

	r, err := fx.svc.Apply(ctx, querystate.Values{}, collection.SexID, smartfilter.Input{Value: "2"}, language.English)
	require.NoError(t, err)
	assert.Equal(t, "sexId=2", r.Query)
}

func TestClearKeepsDisplayKeys(t *testing.T) {
	fx := newFixture(t, 20, nil)
	values := querystate.Values{
		collection.CountryID: "PE",
		collection.ClassID:   "42",
		collection.View:      "grid",
		querystate.PageKey:   "2",
	}

	r := fx.svc.Clear(context.Background(), values)
	assert.True(t, r.Changed)
	assert.Equal(t, "view=grid", r.Query)
	assert.Equal(t, querystate.Changes{collection.CountryID: "", collection.ClassID: ""}, r.Changes)

	r = fx.svc.Clear(context.Background(), r.Values)
	assert.False(t, r.Changed)
}

func TestSetPageKeepsFilters(t *testing.T) {
	fx := newFixture(t, 20, nil)
	values := querystate.Values{collection.CountryID: "PE"}

	r := fx.svc.SetPage(values, 3)
	assert.Equal(t, "countryId=PE&page=3", r.Query)

	r = fx.svc.SetPage(r.Values, 1)
	assert.Equal(t, "countryId=PE", r.Query)

	r = fx.svc.SetPage(r.Values, 0)
	assert.False(t, r.Changed)
}

func TestOptions(t *testing.T) {
	fx := newFixture(t, 20, nil)
	ctx := context.Background()
	pe := querystate.Values{collection.CountryID: "PE"}

	page, err := fx.svc.Options(ctx, pe, collection.DepartmentID, "cus", 1, language.English)
	require.NoError(t, err)
	assert.Equal(t, []options.Option{{Label: "Cusco", Value: "8"}}, page.Options)
	assert.False(t, page.HasMore)

	page, err = fx.svc.Options(ctx, querystate.Values{}, collection.DepartmentID, "", 1, language.English)
	require.NoError(t, err)
	assert.Empty(t, page.Options)

	fx.fake.Fail("departments", true)
	page, err = fx.svc.Options(ctx, pe, collection.DepartmentID, "", 1, language.English)
	require.NoError(t, err)
	assert.Empty(t, page.Options)

	_, err = fx.svc.Options(ctx, pe, collection.HasEggs, "", 1, language.English)
	assert.True(t, errors.Is(err, errors.ErrUnsupportedAction))

	scoped := false
	for _, q := range fx.fake.Queries() {
		if strings.Contains(q, "countryId=PE") && strings.Contains(q, "name=cus") {
			scoped = true
		}
	}
	assert.True(t, scoped, "department search is scoped by country")
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	args := m.Called(ctx, topic, key, event)
	return args.Error(0)
}

func TestApplyPublishesNavigationEvents(t *testing.T) {
	producer := new(MockProducer)
	producer.On("Publish", mock.Anything, kafka.TopicFilterChanged, "countryId", mock.MatchedBy(func(e events.FilterChangedEvent) bool {
		return e.Value == "BR" && e.Query == "countryId=BR" &&
			assert.ObjectsAreEqual([]string{"departmentId", "districtId", "localityId", "provinceId"}, e.Cleared)
	})).Return(nil).Once()
	producer.On("Publish", mock.Anything, kafka.TopicFiltersCleared, "", mock.AnythingOfType("events.FiltersClearedEvent")).Return(nil).Once()

	fx := newFixture(t, 20, producer)
	ctx := context.Background()

	r, err := fx.svc.Apply(ctx, querystate.Values{collection.CountryID: "PE", collection.DepartmentID: "7"}, collection.CountryID, smartfilter.Input{Value: "BR"}, language.English)
	require.NoError(t, err)

	fx.svc.Clear(ctx, r.Values)
	producer.AssertExpectations(t)
}

func TestParsePage(t *testing.T) {
	assert.Equal(t, 1, ParsePage(""))
	assert.Equal(t, 1, ParsePage("-2"))
	assert.Equal(t, 4, ParsePage("4"))
}
