package bagbuilder

import (
	"fmt"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/seminars/internal/model"
	"github.com/jackc/pgx/v5"
)

// TimeFrame names a window relative to now that events are listed for.
type TimeFrame string

const (
	Past                  TimeFrame = "past"
	PastAndCurrent        TimeFrame = "pastAndCurrent"
	Current               TimeFrame = "current"
	CurrentAndUpcoming    TimeFrame = "currentAndUpcoming"
	Upcoming              TimeFrame = "upcoming"
	UpcomingWithBeginDate TimeFrame = "upcomingWithBeginDate"
	DeadlineNotOver       TimeFrame = "deadlineNotOver"
	Today                 TimeFrame = "today"
	All                   TimeFrame = "all"
)

var timeFrames = []TimeFrame{
	Past, PastAndCurrent, Current, CurrentAndUpcoming, Upcoming,
	UpcomingWithBeginDate, DeadlineNotOver, Today, All,
}

// ParseTimeFrame validates a time-frame key.
func ParseTimeFrame(key string) (TimeFrame, error) {
	for _, tf := range timeFrames {
		if string(tf) == key {
			return tf, nil
		}
	}
	return "", model.InvalidArgument("unknown time frame %q", key)
}

// unix converts t to the stored representation; the zero time is 0.
func unix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// timeFrameSQL renders tf for alias. An empty string means no restriction.
func timeFrameSQL(tf TimeFrame, alias string, now time.Time) (string, pgx.NamedArgs) {
	r := strings.NewReplacer(
		"{b}", alias+".begin_date",
		"{e}", alias+".end_date",
		"{dl}", alias+".deadline_registration",
	)

	past := r.Replace("{b} <> 0 AND (({e} <> 0 AND {e} < @timeframe_now) OR ({e} = 0 AND {b} < @timeframe_now))")
	current := r.Replace("{b} <> 0 AND {b} <= @timeframe_now AND {e} <> 0 AND {e} >= @timeframe_now")
	upcoming := r.Replace("{b} = 0 OR {b} > @timeframe_now")

	args := pgx.NamedArgs{"timeframe_now": now.Unix()}

	switch tf {
	case Past:
		return past, args
	case PastAndCurrent:
		return fmt.Sprintf("(%s) OR (%s)", past, current), args
	case Current:
		return current, args
	case CurrentAndUpcoming:
		return fmt.Sprintf("(%s) OR (%s)", current, upcoming), args
	case Upcoming:
		return upcoming, args
	case UpcomingWithBeginDate:
		return r.Replace("{b} > @timeframe_now"), args
	case DeadlineNotOver:
		return r.Replace("({dl} = 0 AND ({b} = 0 OR {b} > @timeframe_now)) OR {dl} > @timeframe_now"), args
	case Today:
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		end := start.AddDate(0, 0, 1)
		return r.Replace("{b} >= @timeframe_day_start AND {b} < @timeframe_day_end AND ({e} = 0 OR {e} >= @timeframe_day_start)"),
			pgx.NamedArgs{"timeframe_day_start": start.Unix(), "timeframe_day_end": end.Unix()}
	default:
		return "", nil
	}
}
