// Package dashboard owns the per-session view state of the admin dashboard
// and drives it through sign-in, approval, loading and selection.
package dashboard

import (
	"errors"
	"time"

	"svinn/internal/auth"
	"svinn/internal/core"
)

// Phase is the position of a session in the dashboard state machine:
// Unauthenticated → CheckingApproval → Loading → Ready | Error | Empty.
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseCheckingApproval
	PhaseLoading
	PhaseReady
	PhaseError
	PhaseEmpty
)

var phaseNames = [...]string{"unauthenticated", "checking_approval", "loading", "ready", "error", "empty"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return "unknown"
	}
	return phaseNames[p]
}

// User-facing messages.
const (
	MsgFetchFailed = "Kunde inte hämta data"
	MsgEmpty       = "Ingen data hittades i daily_clicks"
	MsgNoHistory   = "Ingen data tillgänglig ännu"
	MsgNoSlices    = "Ingen data att visa i grafen för vald dag."
	MsgLoading     = "Laddar..."
)

var (
	ErrFetchFailed      = errors.New("fetch failed")
	ErrStale            = errors.New("stale result discarded")
	ErrNotSignedIn      = errors.New("not signed in")
	ErrApprovalPending  = errors.New("approval check in progress")
	ErrNotReady         = errors.New("dashboard has no data loaded")
	ErrUnknownDay       = errors.New("day not in current window")
)

// ViewState is everything the controller remembers about one session.
type ViewState struct {
	Phase       Phase
	Session     auth.Session
	Window      core.Window
	Records     core.RecordSet
	SelectedDay string
	Message     string
	Err         error
	LoadedAt    time.Time

	generation uint64
}

// View is a self-contained snapshot of a session's dashboard, ready for
// the templates, the JSON API and the PDF export.
type View struct {
	Phase       Phase  `json:"-"`
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	DisplayName string `json:"display_name,omitempty"`

	Window      core.Window  `json:"window_days"`
	WindowLabel string       `json:"window_label"`
	Windows     []WindowItem `json:"-"`

	TodayKey   string              `json:"today"`
	TodayLabel string              `json:"-"`
	Today      core.CategoryTotals `json:"today_counts"`

	Rows []Row `json:"rows"`

	SelectedDay     string              `json:"selected_day,omitempty"`
	SelectedLabel   string              `json:"-"`
	Selected        core.CategoryTotals `json:"selected_counts"`
	SelectedTotal   int                 `json:"selected_total"`
	Slices          []core.Slice        `json:"slices"`
	Period          core.CategoryTotals `json:"period_counts"`
	PeriodTotal     int                 `json:"period_total"`
	ShowPeriodBlock bool                `json:"show_period_block"`

	Categories []core.Category `json:"-"`
	Records    core.RecordSet  `json:"-"`
	LoadedAt   time.Time       `json:"loaded_at,omitempty"`
}

// Row is one history table line, oldest first.
type Row struct {
	core.DailyRecord
	Label    string `json:"label"`
	Selected bool   `json:"selected"`
}

// WindowItem is one option of the window selector.
type WindowItem struct {
	Days     int
	Label    string
	Selected bool
}

// Ready reports whether the snapshot carries data to render.
func (v View) Ready() bool { return v.Phase == PhaseReady }
