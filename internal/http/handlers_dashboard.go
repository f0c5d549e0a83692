package http

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/charts"
	"fintrack/internal/log"
)

type dashboardData struct {
	Username string
	Year     int
	Month    int
	Widgets  []template.HTML
}

// widgetParams scopes the dashboard to the logged-in account and the requested period.
func (s *Server) widgetParams(r *http.Request) charts.Params {
	sess, _ := sessionFrom(r.Context())
	year, month := s.deps.Period(time.Now())
	mp := ParseMonthParams(r.URL.Query(), year, month)
	return charts.Params{
		Username: s.deps.Users.AnalyticsUser(sess.Username),
		OwnerID:  sess.AccountID,
		Year:     mp.Year,
		Month:    mp.Month,
	}
}

// renderWidget runs one widget under its own timeout.
func (s *Server) renderWidget(ctx context.Context, name string, p charts.Params) (template.HTML, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.deps.WidgetTimeout)
	defer cancel()
	return s.deps.Widgets.Render(ctx, name, p)
}

// handleDashboard renders every widget in order on the request goroutine. A
// failing widget renders its own placeholder and never blocks the others.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	p := s.widgetParams(r)
	data := dashboardData{Username: p.Username, Year: p.Year, Month: p.Month}

	start := time.Now()
	for _, name := range charts.Widgets() {
		html, _ := s.renderWidget(r.Context(), name, p)
		data.Widgets = append(data.Widgets, html)
	}
	s.deps.Logger.Fields(r.Context(), slog.LevelDebug, "Dashboard rendered",
		log.NewFields().WithUser(p.Username).WithPeriod(p.Year, p.Month).
			WithHTTPResponse(http.StatusOK, time.Since(start).Milliseconds()))

	sess, _ := sessionFrom(r.Context())
	s.renderPage(w, r, http.StatusOK, "dashboard.html", pageData{
		Title:   "Dashboard",
		User:    sess.Username,
		Content: data,
	})
}

// handleWidget returns a single widget fragment, used for HTMX refreshes.
func (s *Server) handleWidget(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	html, ok := s.renderWidget(r.Context(), name, s.widgetParams(r))
	if !ok {
		NotFoundError("Unknown widget: " + name).Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(string(html)).Write(w)
}
