package store

import (
	"fmt"
	"time"

	"github.com/ehazan/timearc/internal/timeline"
)

// DayInput assembles everything the reconciler needs for one date: the
// waking window from the settings in force, the scheduled layer (daily
// plans, manual plans, manual sessions) and the logged sessions. Today is
// auto-instantiated on first access; malformed rows are skipped rather
// than failing the whole day.
func (s *Store) DayInput(isoDate string, now time.Time) (timeline.DayInput, error) {
	settings, err := s.ScheduleSettingsFor(isoDate)
	if err != nil {
		return timeline.DayInput{}, err
	}
	loc := appLocation(settings.Timezone)
	tzOffset := timeline.OffsetFor(settings.Timezone)

	day, err := time.ParseInLocation(timeline.ISODate, isoDate, loc)
	if err != nil {
		return timeline.DayInput{}, err
	}
	wakeStart, wakeEnd, err := timeline.Window(day, settings.WakeTime, settings.SleepTime)
	if err != nil {
		return timeline.DayInput{}, err
	}

	if err := s.EnsureToday(isoDate); err != nil {
		return timeline.DayInput{}, err
	}

	in := timeline.DayInput{WakingStart: wakeStart, WakingEnd: wakeEnd}
	today := s.todayAt(now)
	if isoDate == today {
		in.OpenEnd = now.In(loc)
	}

	plans, err := s.DailyPlansForDate(isoDate)
	if err != nil {
		return timeline.DayInput{}, err
	}
	for _, p := range plans {
		b, err := timeline.NewScheduled(day, p.StartTime, p.EndTime, p.DisplayTitle())
		if err != nil {
			continue
		}
		b.Color, b.Background, b.TextColor = p.ColorHex, p.Backgrnd, p.TextColor
		in.Scheduled = append(in.Scheduled, b)
	}

	// Manual plans only overlay today and the future; past days show what
	// actually happened.
	if isoDate >= today {
		manual, err := s.ManualPlansForDate(isoDate)
		if err != nil {
			return timeline.DayInput{}, err
		}
		for _, p := range manual {
			b, err := timeline.NewScheduled(day, p.StartTime, p.EndTime, timeline.JoinTitle(p.Activity, p.SubActivity))
			if err != nil {
				continue
			}
			b.Color, b.Background, b.TextColor = p.ColorHex, p.Backgrnd, p.TextColor
			in.Scheduled = append(in.Scheduled, b)
		}
	}

	// Backfilled sessions count as part of the plan layer too, so the
	// timeline shows them even where no logged overlay survives.
	manualSessions, err := s.ManualSessionsForDate(isoDate, tzOffset)
	if err != nil {
		return timeline.DayInput{}, err
	}
	for _, ms := range manualSessions {
		if ms.EndMs == nil {
			continue
		}
		start := time.UnixMilli(ms.StartMs).In(loc)
		end := time.UnixMilli(*ms.EndMs).In(loc)
		if !start.Before(end) {
			continue
		}
		in.Scheduled = append(in.Scheduled, timeline.Block{
			ID:    fmt.Sprintf("manual-%d", ms.ID),
			Start: start, End: end,
			Title:      timeline.JoinTitle(ms.Activity, ms.SubActivity),
			Type:       timeline.BlockScheduled,
			Color:      ms.ColorHex,
			Background: ms.Backgrnd,
			TextColor:  ms.TextColor,
		})
	}

	sessions, err := s.SessionsForDay(isoDate, tzOffset)
	if err != nil {
		return timeline.DayInput{}, err
	}
	for _, sess := range sessions {
		ts := timeline.Session{
			Start:      time.UnixMilli(sess.StartMs).In(loc),
			Title:      timeline.JoinTitle(sess.Activity, sess.SubActivity),
			Color:      sess.ColorHex,
			Background: sess.Backgrnd,
			TextColor:  sess.TextColor,
		}
		if sess.EndMs != nil {
			end := time.UnixMilli(*sess.EndMs).In(loc)
			ts.End = &end
		}
		in.Sessions = append(in.Sessions, ts)
	}

	return in, nil
}

// DayTimeline reconciles one date into its final block sequence.
func (s *Store) DayTimeline(isoDate string, now time.Time) ([]timeline.Block, error) {
	in, err := s.DayInput(isoDate, now)
	if err != nil {
		return nil, err
	}
	return timeline.Reconcile(in), nil
}
