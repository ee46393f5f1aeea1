package store

// Default presentation colors applied when an activity has no color row.
const (
	DefaultColorHex  = "#3B82F6"
	DefaultTextColor = "#FFFFFF"
)

// Default waking-window settings used before any row exists.
const (
	DefaultWakeTime  = "08:00"
	DefaultSleepTime = "21:40"
	DefaultTimezone  = "PST"
)

// Labels substituted for missing references in summary keys.
const (
	NoActivityLabel    = "(no activity)"
	NoSubActivityLabel = "(none)"
)

type Activity struct {
	ID        int64
	Name      string
	ColorHex  string
	Backgrnd  string
	TextColor string
}

type SubActivity struct {
	ID         int64
	ActivityID int64
	Name       string
}

type ActivityColor struct {
	ActivityID int64
	ColorHex   string
	Backgrnd   string
	TextColor  string
}

// Session is a logged interval of activity. EndMs is nil while the session
// is running; at most one such row exists at a time.
type Session struct {
	ID            int64
	ActivityID    *int64
	SubActivityID *int64
	Note          string
	StartMs       int64
	EndMs         *int64
	DurationMs    *int64
	IsManual      bool

	// Resolved for display by joined queries; zero otherwise.
	Activity    string
	SubActivity string
	ColorHex    string
	Backgrnd    string
	TextColor   string
}

// WeeklyEvent is one entry of the weekly recurring template, versioned by
// effective date.
type WeeklyEvent struct {
	ID            int64
	EffectiveDate string
	DayOfWeek     int // 0=Sunday..6=Saturday
	StartTime     string
	EndTime       string
	ActivityID    int64
	SubActivityID *int64

	Activity    string
	SubActivity string
	ColorHex    string
	Backgrnd    string
	TextColor   string
}

// ManualPlan is a one-off planned interval for a specific date.
type ManualPlan struct {
	ID            int64
	PlanDate      string
	StartTime     string
	EndTime       string
	ActivityID    int64
	SubActivityID *int64

	Activity    string
	SubActivity string
	ColorHex    string
	Backgrnd    string
	TextColor   string
}

// Plan sources for daily instantiated plans.
const (
	PlanSourceWeekly = "weekly"
	PlanSourceManual = "manual"
)

// DailyPlan is the weekly template materialized onto one concrete date.
type DailyPlan struct {
	ID            int64
	PlanDate      string
	StartTime     string
	EndTime       string
	ActivityID    *int64
	SubActivityID *int64
	Title         string
	Subtitle      string
	Source        string

	Activity    string
	SubActivity string
	ColorHex    string
	Backgrnd    string
	TextColor   string
}

// ScheduleSettings is the waking-window definition in force for a date.
type ScheduleSettings struct {
	EffectiveDate string
	WakeTime      string
	SleepTime     string
	Timezone      string
}

type JournalEntry struct {
	ID        int64
	EntryDate string
	Content   string
	CreatedMs int64
	EditedMs  *int64
}

// SummaryRow is one line of a per-label duration aggregation.
type SummaryRow struct {
	Key    string // "Activity / SubActivity"
	Millis int64
}

// DeleteResult reports whether a guarded delete went through, and why not.
type DeleteResult struct {
	OK     bool
	Reason string
}

// Page describes a paginated listing.
type Page struct {
	Current    int
	Size       int
	Total      int
	TotalPages int
}
