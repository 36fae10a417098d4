package bagbuilder

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/Shivanand-hulikatti/seminars/internal/clock"
	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/Shivanand-hulikatti/seminars/internal/scope"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.March, 14, 10, 30, 0, 0, time.UTC)

type pageTree map[int64][]int64

func (p pageTree) ChildrenOf(_ context.Context, ids []int64) ([]int64, error) {
	var out []int64
	for _, id := range ids {
		out = append(out, p[id]...)
	}
	return out, nil
}

func newEventBuilder() *EventBuilder {
	tree := pageTree{10: {11}, 11: {12}}
	return NewEventBuilder(nil, scope.New(tree), clock.Fixed(testNow))
}

func TestEventBuilder_DefaultsToFrontEndVisibility(t *testing.T) {
	st := newEventBuilder().Statement()

	assert.Contains(t, st.Where, "NOT e.hidden AND NOT e.deleted")
	assert.Contains(t, st.Where, "e.endtime = 0 OR e.endtime > @visibility_now")
	assert.Equal(t, testNow.Unix(), st.Args["visibility_now"])
}

func TestEventBuilder_BackEndModeNeverShowsDeleted(t *testing.T) {
	eb := newEventBuilder()
	eb.SetBackEndMode()

	st := eb.Statement()
	assert.Equal(t, "(NOT e.deleted)", st.Where)
	assert.NotContains(t, st.Args, "visibility_now")
}

func TestEventBuilder_SourcePagesRecursion(t *testing.T) {
	eb := newEventBuilder()

	require.NoError(t, eb.SetSourcePages(context.Background(), "10", 1))
	assert.Equal(t, []int64{10, 11}, eb.Statement().Args["source_pids"])

	require.NoError(t, eb.SetSourcePages(context.Background(), "10", 2))
	assert.Equal(t, []int64{10, 11, 12}, eb.Statement().Args["source_pids"])
}

func TestEventBuilder_SourcePagesMalformedOrEmptyClears(t *testing.T) {
	for _, input := range []string{"", "10,abc", "0"} {
		eb := newEventBuilder()
		require.NoError(t, eb.SetSourcePages(context.Background(), "10", 0))
		require.NoError(t, eb.SetSourcePages(context.Background(), input, 0))

		assert.NotContains(t, eb.Statement().Where, "e.pid", input)
	}
}

func TestEventBuilder_LimitToCategoriesExpandsThroughTopic(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.LimitToCategories([]int64{4, 5}))

	st := eb.Statement()
	assert.Contains(t, st.Where, "(e.object_type <> 2 AND e.uid IN (SELECT mm.uid_local FROM events_categories_mm mm WHERE mm.uid_foreign = ANY(@categories)))")
	assert.Contains(t, st.Where, "e.topic IN (SELECT mm.uid_local FROM events_categories_mm mm WHERE mm.uid_foreign = ANY(@categories))")
	assert.Equal(t, []int64{4, 5}, st.Args["categories"])
}

func TestEventBuilder_LimitToEmptyCategoriesClearsPriorRestriction(t *testing.T) {
	untouched := newEventBuilder().Statement()

	eb := newEventBuilder()
	require.NoError(t, eb.LimitToCategories([]int64{4}))
	require.NoError(t, eb.LimitToCategories(nil))

	assert.Equal(t, untouched, eb.Statement())
}

func TestEventBuilder_LimitToCategoriesRejectsNonPositiveUIDs(t *testing.T) {
	err := newEventBuilder().LimitToCategories([]int64{3, 0})
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestEventBuilder_PlacesAreDateLevel(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.LimitToPlaces([]int64{9}))

	where := eb.Statement().Where
	assert.Contains(t, where, "e.uid IN (SELECT mm.uid_local FROM events_places_mm mm WHERE mm.uid_foreign = ANY(@places))")
	assert.NotContains(t, where, "e.topic IN")
}

func TestEventBuilder_CitiesAndCountries(t *testing.T) {
	eb := newEventBuilder()
	eb.LimitToCities([]string{"Bonn", " "})
	eb.LimitToCountries([]string{"de"})

	st := eb.Statement()
	assert.Contains(t, st.Where, "f.city = ANY(@cities)")
	assert.Contains(t, st.Where, "f.country = ANY(@countries)")
	assert.Equal(t, []string{"Bonn"}, st.Args["cities"])

	eb.LimitToCities([]string{""})
	assert.NotContains(t, eb.Statement().Where, "@cities")
}

func TestEventBuilder_EventTypesAreTopicLevel(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.LimitToEventTypes([]int64{2}))

	where := eb.Statement().Where
	assert.Contains(t, where, "e.event_type = ANY(@event_types)")
	assert.Contains(t, where, "e.topic IN (SELECT t.uid FROM events t WHERE t.object_type = 1 AND (t.event_type = ANY(@event_types)))")
}

func TestEventBuilder_LimitToAge(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.LimitToAge(15))

	st := eb.Statement()
	assert.Contains(t, st.Where, "NOT EXISTS (SELECT 1 FROM events_target_groups_mm mm WHERE mm.uid_local = e.uid)")
	assert.Contains(t, st.Where, "(f.minimum_age = 0 OR f.minimum_age <= @age) AND (f.maximum_age = 0 OR f.maximum_age >= @age)")
	assert.Equal(t, 15, st.Args["age"])

	require.NoError(t, eb.LimitToAge(0))
	assert.NotContains(t, eb.Statement().Args, "age")
	assert.ErrorIs(t, eb.LimitToAge(-1), model.ErrInvalidArgument)
}

func TestEventBuilder_VariantToggle(t *testing.T) {
	eb := newEventBuilder()

	eb.LimitToTopicRecords()
	assert.Contains(t, eb.Statement().Where, "(e.object_type = 1)")

	eb.LimitToDateAndSingleRecords()
	where := eb.Statement().Where
	assert.Contains(t, where, "(e.object_type <> 1)")
	assert.NotContains(t, where, "(e.object_type = 1)")

	eb.RemoveLimitToVariant()
	assert.NotContains(t, eb.Statement().Where, "e.object_type <> 1")
}

func TestEventBuilder_Status(t *testing.T) {
	eb := newEventBuilder()
	eb.LimitToStatus(model.StatusConfirmed)
	assert.Equal(t, 2, eb.Statement().Args["status"])

	eb.RemoveLimitToStatus()
	assert.NotContains(t, eb.Statement().Where, "e.status")
}

func TestEventBuilder_RequiredTopics(t *testing.T) {
	eb := newEventBuilder()
	date := &model.Event{ID: 7, Variant: model.VariantDate, TopicID: 3}

	require.NoError(t, eb.LimitToRequiredEventTopics(date))
	st := eb.Statement()
	assert.Contains(t, st.Where, "e.uid IN (SELECT mm.uid_foreign FROM events_requirements_mm mm WHERE mm.uid_local = @required_of)")
	assert.Equal(t, int64(3), st.Args["required_of"])

	topic := &model.Event{ID: 3, Variant: model.VariantTopic}
	require.NoError(t, eb.LimitToDependingEventTopics(topic))
	st = eb.Statement()
	assert.Contains(t, st.Where, "e.uid IN (SELECT mm.uid_local FROM events_requirements_mm mm WHERE mm.uid_foreign = @depending_on)")
	assert.Equal(t, int64(3), st.Args["depending_on"])
}

func TestEventBuilder_RequiredTopicsRejectSingle(t *testing.T) {
	single := &model.Event{ID: 7, Variant: model.VariantSingle}
	eb := newEventBuilder()

	assert.ErrorIs(t, eb.LimitToRequiredEventTopics(single), model.ErrInvalidVariant)
	assert.ErrorIs(t, eb.LimitToDependingEventTopics(single), model.ErrInvalidArgument)
	assert.ErrorIs(t, eb.LimitToRequiredEventTopics(nil), model.ErrInvalidArgument)
}

func TestEventBuilder_TopicsWithoutRegistrationByUser(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.LimitToTopicsWithoutRegistrationByUser(42))

	st := eb.Statement()
	assert.Contains(t, st.Where, "d.expiry = 0 OR d.expiry >= @no_registration_now")
	assert.Contains(t, st.Where, "d.topic = e.uid")
	assert.Equal(t, int64(42), st.Args["no_registration_user"])
	assert.Equal(t, testNow.Unix(), st.Args["no_registration_now"])

	assert.ErrorIs(t, eb.LimitToTopicsWithoutRegistrationByUser(0), model.ErrInvalidArgument)
}

func TestEventBuilder_MaximumPrice(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.LimitToMaximumPrice(50))

	st := eb.Statement()
	assert.Contains(t, st.Where, "e.price_regular <= @maximum_price")
	assert.Contains(t, st.Where, "(e.price_regular > 0 OR (e.price_regular_board = 0 AND e.price_special = 0")
	assert.Contains(t, st.Where, "(e.price_special_board > 0 AND e.price_special_board <= @maximum_price)")
	assert.Contains(t, st.Where, "e.deadline_early_bird > 0 AND e.deadline_early_bird >= @maximum_price_now")
	assert.Contains(t, st.Where, "t.price_regular_early > 0 AND t.price_regular_early <= @maximum_price")
	assert.Equal(t, 50.0, st.Args["maximum_price"])
	assert.Equal(t, testNow.Unix(), st.Args["maximum_price_now"])
}

func TestEventBuilder_MinimumPrice(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.LimitToMinimumPrice(20))

	st := eb.Statement()
	assert.Contains(t, st.Where, "e.price_regular >= @minimum_price")
	assert.Contains(t, st.Where, "(t.price_special_early > 0 AND t.price_special_early >= @minimum_price)")
	assert.Equal(t, 20.0, st.Args["minimum_price"])
}

func TestEventBuilder_ZeroPriceClears(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.LimitToMaximumPrice(50))
	require.NoError(t, eb.LimitToMinimumPrice(10))
	require.NoError(t, eb.LimitToMaximumPrice(0))
	require.NoError(t, eb.LimitToMinimumPrice(0))

	assert.NotContains(t, eb.Statement().Where, "price")
	assert.ErrorIs(t, eb.LimitToMaximumPrice(-1), model.ErrInvalidArgument)
	assert.ErrorIs(t, eb.LimitToMaximumPrice(math.NaN()), model.ErrInvalidArgument)
	assert.ErrorIs(t, eb.LimitToMinimumPrice(math.Inf(1)), model.ErrInvalidArgument)
	assert.NotContains(t, eb.Statement().Where, "price")
}

func TestEventBuilder_Vacancies(t *testing.T) {
	eb := newEventBuilder()
	eb.ShowOnlyEventsWithVacancies()

	where := eb.Statement().Where
	assert.Contains(t, where, "NOT e.needs_registration OR e.attendees_max = 0 OR e.attendees_max > e.offline_attendees + ")
	assert.Contains(t, where, "NOT rs.registration_queue")
}

func TestEventBuilder_OwnerAndManager(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.LimitToOwner(5))
	require.NoError(t, eb.LimitToEventManager(6))

	st := eb.Statement()
	assert.Equal(t, int64(5), st.Args["owner"])
	assert.Equal(t, []int64{6}, st.Args["manager"])
	assert.Contains(t, st.Where, "events_managers_mm")

	require.NoError(t, eb.LimitToOwner(0))
	require.NoError(t, eb.LimitToEventManager(0))
	assert.NotContains(t, eb.Statement().Where, "owner_feuser")
	assert.NotContains(t, eb.Statement().Where, "events_managers_mm")

	assert.ErrorIs(t, eb.LimitToOwner(-3), model.ErrInvalidArgument)
	assert.ErrorIs(t, eb.LimitToEventManager(-3), model.ErrInvalidArgument)
}

func TestEventBuilder_BeginDateBounds(t *testing.T) {
	eb := newEventBuilder()
	earliest := testNow.Add(-time.Hour)
	latest := testNow.Add(time.Hour)
	eb.LimitToEarliestBeginDate(earliest)
	eb.LimitToLatestBeginDate(latest)

	st := eb.Statement()
	assert.Contains(t, st.Where, "e.begin_date >= @earliest_begin")
	assert.Contains(t, st.Where, "e.begin_date <> 0 AND e.begin_date <= @latest_begin")
	assert.Equal(t, earliest.Unix(), st.Args["earliest_begin"])
	assert.Equal(t, latest.Unix(), st.Args["latest_begin"])

	eb.LimitToEarliestBeginDate(time.Time{})
	eb.LimitToLatestBeginDate(time.Time{})
	assert.NotContains(t, eb.Statement().Where, "begin_date")
}

func TestEventBuilder_DaysBeforeBeginDate(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.LimitToDaysBeforeBeginDate(3))

	st := eb.Statement()
	assert.Contains(t, st.Where, "e.begin_date = 0 OR e.begin_date <= @days_before")
	assert.Equal(t, testNow.Add(72*time.Hour).Unix(), st.Args["days_before"])
}

func TestEventBuilder_ReminderFlags(t *testing.T) {
	eb := newEventBuilder()
	eb.LimitToCancelationReminderSent(false)
	eb.LimitToTakesPlaceReminderSent(true)

	st := eb.Statement()
	assert.Equal(t, false, st.Args["cancelation_reminder"])
	assert.Equal(t, true, st.Args["takes_place_reminder"])
}

func TestEventBuilder_OtherDatesForTopic(t *testing.T) {
	eb := newEventBuilder()
	date := &model.Event{ID: 8, Variant: model.VariantDate, TopicID: 3}
	require.NoError(t, eb.LimitToOtherDatesForTopic(date))

	st := eb.Statement()
	assert.Equal(t, int64(3), st.Args["other_dates_topic"])
	assert.Equal(t, int64(8), st.Args["other_dates_self"])

	single := &model.Event{ID: 9, Variant: model.VariantSingle}
	assert.ErrorIs(t, eb.LimitToOtherDatesForTopic(single), model.ErrInvalidVariant)
}

func TestEventBuilder_EventsNextDay(t *testing.T) {
	eb := newEventBuilder()
	end := testNow.Add(2 * time.Hour)
	date := &model.Event{ID: 8, Variant: model.VariantDate, TopicID: 3, BeginDate: testNow, EndDate: end}
	require.NoError(t, eb.LimitToEventsNextDay(date))

	st := eb.Statement()
	assert.Equal(t, end.Unix(), st.Args["next_day_from"])
	assert.Equal(t, end.Add(24*time.Hour).Unix(), st.Args["next_day_to"])
	assert.Equal(t, int64(3), st.Args["next_day_topic"])

	noEnd := &model.Event{ID: 8, Variant: model.VariantDate, TopicID: 3, BeginDate: testNow}
	assert.ErrorIs(t, eb.LimitToEventsNextDay(noEnd), model.ErrInvalidArgument)
}

func TestEventBuilder_OrderAndLimitAreOverridable(t *testing.T) {
	eb := newEventBuilder()
	eb.SetOrderBy("e.begin_date")
	require.NoError(t, eb.SetLimit("0,5"))
	eb.SetOrderBy("e.title")
	require.NoError(t, eb.SetLimit("10"))

	assert.Equal(t, " ORDER BY e.title LIMIT 10 OFFSET 0", eb.Statement().Tail())

	eb.SetOrderBy("")
	require.NoError(t, eb.SetLimit(""))
	assert.Empty(t, eb.Statement().Tail())
}

func TestEventBuilder_NamedArgsCoverPlaceholders(t *testing.T) {
	eb := newEventBuilder()
	require.NoError(t, eb.SetSourcePages(context.Background(), "10", 1))
	require.NoError(t, eb.SetTimeFrame(Today))
	require.NoError(t, eb.LimitToCategories([]int64{1}))
	require.NoError(t, eb.LimitToMaximumPrice(10))
	eb.LimitToFullTextSearch("foo bar")

	st := eb.Statement()
	for _, name := range []string{"source_pids", "timeframe_day_start", "timeframe_day_end", "categories", "maximum_price", "search_0", "search_1"} {
		assert.Contains(t, st.Where, "@"+name)
		assert.Contains(t, st.Args, name)
	}
	assert.IsType(t, pgx.NamedArgs{}, st.Args)
}
