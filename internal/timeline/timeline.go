// Package timeline turns a day's scheduled plans and logged sessions into a
// single ordered, non-overlapping sequence of typed blocks covering the
// waking window.
package timeline

import (
	"fmt"
	"sort"
	"time"
)

// BlockType classifies a timeline block.
type BlockType string

const (
	BlockScheduled BlockType = "scheduled"
	BlockLogged    BlockType = "logged"
	BlockGap       BlockType = "gap"
)

// GapTitle labels the implicit free-time blocks.
const GapTitle = "Free"

// MinLoggedDuration is the threshold under which logged slivers produced by
// session splitting are dropped from the final timeline.
const MinLoggedDuration = time.Minute

// Block is one segment of a day's timeline.
type Block struct {
	ID         string
	Start      time.Time
	End        time.Time
	Title      string
	Type       BlockType
	Color      string
	Background string
	TextColor  string
}

// Duration returns the block's length.
func (b Block) Duration() time.Duration { return b.End.Sub(b.Start) }

// Session is a logged interval overlaid onto the scheduled blocks.
// End is nil for the still-running session.
type Session struct {
	Start      time.Time
	End        *time.Time
	Title      string
	Color      string
	Background string
	TextColor  string
}

// DayInput holds everything the reconciler needs for one day.
type DayInput struct {
	WakingStart time.Time
	WakingEnd   time.Time
	Scheduled   []Block
	Sessions    []Session

	// OpenEnd is the effective end for a session with no end time. Zero
	// means clip at WakingEnd.
	OpenEnd time.Time
}

func makeID(start, end time.Time, typ BlockType) string {
	return fmt.Sprintf("%d-%d-%s", start.UnixMilli(), end.UnixMilli(), typ)
}

// NewScheduled builds a scheduled block from clock strings on the given day.
// Blocks with malformed times or with start >= end are rejected.
func NewScheduled(day time.Time, startClock, endClock, title string) (Block, error) {
	s, err := At(day, startClock)
	if err != nil {
		return Block{}, err
	}
	e, err := At(day, endClock)
	if err != nil {
		return Block{}, err
	}
	if !s.Before(e) {
		return Block{}, fmt.Errorf("scheduled block %q: start %s not before end %s", title, startClock, endClock)
	}
	return Block{ID: makeID(s, e, BlockScheduled), Start: s, End: e, Title: title, Type: BlockScheduled}, nil
}

// Reconcile produces the day's block sequence: scheduled blocks and implicit
// gaps tile the waking window, then each logged session splits whatever it
// overlaps, taking precedence. Later sessions further subdivide the pieces
// left by earlier ones, so overlapping sessions are supported. Finally the
// blocks are sorted and logged slivers under MinLoggedDuration are dropped.
func Reconcile(in DayInput) []Block {
	blocks := baseBlocks(in)

	openEnd := in.OpenEnd
	if openEnd.IsZero() {
		openEnd = in.WakingEnd
	}

	for _, ss := range in.Sessions {
		end := openEnd
		if ss.End != nil {
			end = *ss.End
		}
		if !ss.Start.Before(end) {
			continue
		}
		blocks = overlay(blocks, ss, end)
	}

	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Start.Before(blocks[j].Start) })

	out := blocks[:0]
	for _, b := range blocks {
		if b.Type == BlockLogged && b.Duration() < MinLoggedDuration {
			continue
		}
		out = append(out, b)
	}
	return out
}

// baseBlocks partitions [WakingStart, WakingEnd) into the scheduled blocks
// and the gaps between them.
func baseBlocks(in DayInput) []Block {
	scheduled := make([]Block, 0, len(in.Scheduled))
	for _, b := range in.Scheduled {
		if !b.Start.Before(b.End) {
			continue
		}
		scheduled = append(scheduled, b)
	}
	sort.Slice(scheduled, func(i, j int) bool { return scheduled[i].Start.Before(scheduled[j].Start) })

	var blocks []Block
	cursor := in.WakingStart
	for _, ev := range scheduled {
		if cursor.Before(ev.Start) {
			blocks = append(blocks, Block{
				ID:    makeID(cursor, ev.Start, BlockGap),
				Start: cursor, End: ev.Start,
				Title: GapTitle, Type: BlockGap,
			})
		}
		blocks = append(blocks, ev)
		cursor = ev.End
	}
	if cursor.Before(in.WakingEnd) {
		blocks = append(blocks, Block{
			ID:    makeID(cursor, in.WakingEnd, BlockGap),
			Start: cursor, End: in.WakingEnd,
			Title: GapTitle, Type: BlockGap,
		})
	}
	return blocks
}

// overlay splits every block the session interval intersects: the portion
// before keeps the original type, the intersection becomes a logged block,
// the portion after keeps the original type.
func overlay(blocks []Block, ss Session, end time.Time) []Block {
	out := make([]Block, 0, len(blocks)+2)
	for _, b := range blocks {
		if !end.After(b.Start) || !ss.Start.Before(b.End) {
			out = append(out, b)
			continue
		}
		if b.Start.Before(ss.Start) {
			head := b
			head.End = ss.Start
			head.ID = makeID(head.Start, head.End, head.Type)
			out = append(out, head)
		}
		os := maxTime(b.Start, ss.Start)
		oe := minTime(b.End, end)
		out = append(out, Block{
			ID:    makeID(os, oe, BlockLogged),
			Start: os, End: oe,
			Title:      ss.Title,
			Type:       BlockLogged,
			Color:      ss.Color,
			Background: ss.Background,
			TextColor:  ss.TextColor,
		})
		if b.End.After(end) {
			tail := b
			tail.Start = end
			tail.ID = makeID(tail.Start, tail.End, tail.Type)
			out = append(out, tail)
		}
	}
	return out
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
