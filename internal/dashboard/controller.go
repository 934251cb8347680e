package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"svinn/internal/auth"
	"svinn/internal/core"
	"svinn/internal/gateway"
)

// Gate decides whether a signed-in user may see the dashboard.
type Gate interface {
	Check(ctx context.Context, userID string) error
}

// SessionEnder ends a session when the approval gate rejects it.
type SessionEnder interface {
	SignOut(ctx context.Context, sessionID string) error
}

// Deps are shared by every controller.
type Deps struct {
	Counters      gateway.CounterReader
	Gate          Gate
	Sessions      SessionEnder
	Location      *time.Location
	Scheme        core.Scheme
	DefaultWindow core.Window
	FetchTimeout  time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Location == nil {
		d.Location = time.UTC
	}
	if !d.DefaultWindow.Valid() {
		d.DefaultWindow = core.DefaultWindow
	}
	if d.FetchTimeout <= 0 {
		d.FetchTimeout = 10 * time.Second
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// Controller drives one session's ViewState. All methods are safe for
// concurrent use; gateway calls run without holding the lock, and a
// generation counter makes the latest Load or Logout win.
type Controller struct {
	deps Deps

	mu    sync.Mutex
	state ViewState
}

func NewController(deps Deps) *Controller {
	deps = deps.withDefaults()
	return &Controller{
		deps:  deps,
		state: ViewState{Window: deps.DefaultWindow},
	}
}

// Activate binds the controller to s, checks approval and loads the
// current window. Nothing is fetched before the gate has answered. A
// rejected user is signed out and the controller returns to
// PhaseUnauthenticated; the returned error wraps the gate's error.
func (c *Controller) Activate(ctx context.Context, s auth.Session) error {
	c.mu.Lock()
	c.state.generation++
	gen := c.state.generation
	c.state.Phase = PhaseCheckingApproval
	c.state.Session = s
	c.state.Message = ""
	c.state.Err = nil
	c.mu.Unlock()

	gateErr := c.deps.Gate.Check(ctx, s.UserID)

	if gateErr != nil {
		c.deps.Logger.WarnContext(ctx, "Dashboard access rejected",
			"user_id", s.UserID, "error", gateErr)
		if err := c.deps.Sessions.SignOut(ctx, s.ID); err != nil && !errors.Is(err, auth.ErrSessionNotFound) {
			c.deps.Logger.ErrorContext(ctx, "Sign-out after rejection failed", "error", err)
		}
		c.mu.Lock()
		c.reset()
		c.state.Message = auth.Message(gateErr)
		c.mu.Unlock()
		return gateErr
	}

	c.mu.Lock()
	if c.state.generation != gen || c.state.Phase != PhaseCheckingApproval {
		c.mu.Unlock()
		return ErrStale
	}
	w := c.state.Window
	gen = c.begin(w)
	c.mu.Unlock()

	return c.fetch(ctx, gen, w, s.UserID)
}

// Load fetches window from the gateway and applies the result unless a
// later Load or a Logout started in the meantime, in which case ErrStale is
// returned and the state is left alone. Load is refused until Activate has
// passed the approval gate.
func (c *Controller) Load(ctx context.Context, window core.Window) error {
	if !window.Valid() {
		return fmt.Errorf("%w: %d", core.ErrInvalidWindow, int(window))
	}

	c.mu.Lock()
	switch c.state.Phase {
	case PhaseUnauthenticated:
		c.mu.Unlock()
		return ErrNotSignedIn
	case PhaseCheckingApproval:
		c.mu.Unlock()
		return ErrApprovalPending
	}
	gen := c.begin(window)
	userID := c.state.Session.UserID
	c.mu.Unlock()

	return c.fetch(ctx, gen, window, userID)
}

// begin enters PhaseLoading for window and returns the fetch generation.
// Callers hold c.mu.
func (c *Controller) begin(window core.Window) uint64 {
	c.state.generation++
	c.state.Phase = PhaseLoading
	c.state.Window = window
	return c.state.generation
}

// fetch runs the gateway call for generation gen and applies its result.
func (c *Controller) fetch(ctx context.Context, gen uint64, window core.Window, userID string) error {
	requestID := uuid.NewString()
	logger := c.deps.Logger.With("request_id", requestID, "user_id", userID, "window_days", int(window))
	start := c.deps.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, c.deps.FetchTimeout)
	rows, err := c.deps.Counters.FetchDailyCounters(fetchCtx, window.Days())
	cancel()

	var rs core.RecordSet
	if err == nil {
		rs, err = core.SelectWindow(rows, window)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.generation != gen || c.state.Phase == PhaseUnauthenticated {
		logger.DebugContext(ctx, "Discarding stale fetch result", "generation", gen, "current", c.state.generation)
		return ErrStale
	}

	if err != nil {
		logger.ErrorContext(ctx, "Fetching daily counters failed", "error", err)
		c.state.Phase = PhaseError
		c.state.Records = core.RecordSet{}
		c.state.SelectedDay = ""
		c.state.Message = MsgFetchFailed
		c.state.Err = fmt.Errorf("%w: %v", ErrFetchFailed, err)
		c.state.LoadedAt = time.Time{}
		return c.state.Err
	}

	c.state.Records = rs
	c.state.Err = nil
	c.state.LoadedAt = c.deps.Now()
	if rs.Empty() {
		c.state.Phase = PhaseEmpty
		c.state.SelectedDay = ""
		c.state.Message = MsgEmpty
	} else {
		c.state.Phase = PhaseReady
		c.state.SelectedDay = core.ResolveSelection(rs, c.state.SelectedDay, c.todayKey())
		c.state.Message = ""
	}

	logger.InfoContext(ctx, "Daily counters loaded",
		"record_count", rs.Len(),
		"view_status", c.state.Phase.String(),
		"duration_ms", c.deps.Now().Sub(start).Milliseconds())
	return nil
}

// Reload fetches the current window again.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	w := c.state.Window
	c.mu.Unlock()
	return c.Load(ctx, w)
}

// Select highlights day. The day must be part of the loaded set.
func (c *Controller) Select(day string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Phase != PhaseReady {
		return ErrNotReady
	}
	if _, ok := c.state.Records.Find(day); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDay, day)
	}
	c.state.SelectedDay = day
	return nil
}

// Logout drops all derived state and invalidates in-flight fetches.
func (c *Controller) Logout() {
	c.mu.Lock()
	c.reset()
	c.mu.Unlock()
}

// reset returns to PhaseUnauthenticated. Callers hold c.mu.
func (c *Controller) reset() {
	c.state = ViewState{
		Phase:      PhaseUnauthenticated,
		Window:     c.deps.DefaultWindow,
		generation: c.state.generation + 1,
	}
}

// State returns a copy of the raw view state.
func (c *Controller) State() ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) todayKey() string {
	return core.DayKey(c.deps.Now(), c.deps.Location)
}

// Snapshot derives everything the dashboard shows from the current state.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()

	today := c.todayKey()
	v := View{
		Phase:       st.Phase,
		Status:      st.Phase.String(),
		Message:     st.Message,
		DisplayName: st.Session.DisplayName,
		Window:      st.Window,
		WindowLabel: st.Window.Label(),
		TodayKey:    today,
		TodayLabel:  FormatDay(today),
		SelectedDay: st.SelectedDay,
		Categories:  core.Categories,
		Records:     st.Records,
		LoadedAt:    st.LoadedAt,
		Rows:        []Row{},
	}
	for _, w := range core.Windows {
		v.Windows = append(v.Windows, WindowItem{Days: w.Days(), Label: w.Label(), Selected: w == st.Window})
	}
	if st.Phase == PhaseLoading && v.Message == "" {
		v.Message = MsgLoading
	}

	records := st.Records.OldestFirst()
	for _, r := range records {
		v.Rows = append(v.Rows, Row{DailyRecord: r, Label: FormatDay(r.Day), Selected: r.Day == st.SelectedDay})
	}
	v.Today = core.TodayCounters(records, today)
	v.Period = core.Totals(records)
	v.PeriodTotal = v.Period.Total()

	if st.SelectedDay != "" {
		v.SelectedLabel = FormatDay(st.SelectedDay)
		if sel, ok := st.Records.Find(st.SelectedDay); ok {
			v.Selected = sel.Counts()
		}
	}
	v.SelectedTotal = v.Selected.Total()
	v.Slices = core.PieSlices(v.Selected, c.deps.Scheme)
	v.ShowPeriodBlock = core.PeriodDiffersFromSelection(v.PeriodTotal, v.SelectedTotal)
	return v
}
