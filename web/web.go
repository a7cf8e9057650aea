// Package web provides the embedded web UI: a calculator keypad and pages for
// inspecting batch jobs.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/deskcalc/pkg/calc"
	"github.com/lemonberrylabs/deskcalc/pkg/keypad"
	"github.com/lemonberrylabs/deskcalc/pkg/runner"
	"github.com/lemonberrylabs/deskcalc/pkg/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// maxHistory is the number of "=" presses kept for the keypad page.
const maxHistory = 10

// Handler serves the web UI pages.
type Handler struct {
	runner  *runner.Runner
	funcMap template.FuncMap

	mu      sync.Mutex
	history []historyEntry
}

type historyEntry struct {
	Expression string
	Result     string
	Time       time.Time
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Data      interface{}
}

// New creates a new web UI handler.
func New(r *runner.Runner) *Handler {
	return &Handler{
		runner: r,
		funcMap: template.FuncMap{
			"timeAgo":    timeAgo,
			"formatTime": formatTime,
			"duration":   duration,
			"stateClass": stateClass,
			"stateIcon":  stateIcon,
			"truncate":   truncate,
			"isError":    calc.IsError,
		},
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data interface{}) error {
	// Parse per request so each page's blocks stay separate.
	tmpl := template.Must(
		template.New("").Funcs(h.funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page),
	)

	pd := pageData{
		NavActive: navActive,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pd); err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.keypadPage)
	app.Post("/ui/press", h.press)
	app.Get("/ui/batches", h.batchList)
	app.Get("/ui/batches/:id", h.batchDetail)
	app.Post("/ui/batches/:id/cancel", h.cancelBatch)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type keypadContent struct {
	Display string
	Layout  [][]string
	Message string
	History []historyEntry
}

type batchListContent struct {
	Batches        []*store.Batch
	RunningCount   int
	SucceededCount int
	FailedCount    int
	CancelledCount int
}

type batchDetailContent struct {
	Batch *store.Batch
}

type notFoundContent struct {
	Message string
}

// --- Page Handlers ---

func (h *Handler) keypadPage(c *fiber.Ctx) error {
	return h.render(c, "keypad.html", "keypad", h.keypadContent(c.Query("display"), ""))
}

func (h *Handler) press(c *fiber.Ctx) error {
	display := c.FormValue("display")
	key := c.FormValue("key")

	if !keypad.IsKey(key) {
		c.Status(400)
		return h.render(c, "keypad.html", "keypad", h.keypadContent(display, fmt.Sprintf("Unknown key %q", key)))
	}

	next := keypad.Press(h.runner.Engine(h.runner.StrictDefault()), display, key)
	if key == keypad.KeyEquals {
		h.record(display, next)
	}
	return h.render(c, "keypad.html", "keypad", h.keypadContent(next, ""))
}

func (h *Handler) batchList(c *fiber.Ctx) error {
	batches := h.runner.Store().ListBatches()

	content := batchListContent{Batches: batches}
	for _, b := range batches {
		switch b.State {
		case store.BatchRunning:
			content.RunningCount++
		case store.BatchSucceeded:
			content.SucceededCount++
		case store.BatchFailed:
			content.FailedCount++
		case store.BatchCancelled:
			content.CancelledCount++
		}
	}

	return h.render(c, "batch_list.html", "batches", content)
}

func (h *Handler) batchDetail(c *fiber.Ctx) error {
	id := c.Params("id")

	b, err := h.runner.Store().GetBatch(id)
	if err != nil {
		c.Status(404)
		return h.render(c, "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Batch '%s' not found", id),
		})
	}

	return h.render(c, "batch_detail.html", "batches", batchDetailContent{Batch: b})
}

func (h *Handler) cancelBatch(c *fiber.Ctx) error {
	id := c.Params("id")
	// A batch that already finished is simply shown in its final state.
	_, _ = h.runner.Cancel(id)
	return c.Redirect("/ui/batches/"+id, fiber.StatusSeeOther)
}

// --- History ---

func (h *Handler) record(expression, result string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.history = append([]historyEntry{{Expression: expression, Result: result, Time: time.Now()}}, h.history...)
	if len(h.history) > maxHistory {
		h.history = h.history[:maxHistory]
	}
}

func (h *Handler) keypadContent(display, message string) keypadContent {
	h.mu.Lock()
	history := append([]historyEntry(nil), h.history...)
	h.mu.Unlock()

	return keypadContent{
		Display: display,
		Layout:  keypad.Layout,
		Message: message,
		History: history,
	}
}

// --- Template Helpers ---

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

func duration(start, end time.Time) string {
	if end.IsZero() {
		d := time.Since(start)
		return fmt.Sprintf("%s (running)", formatDuration(d))
	}
	return formatDuration(end.Sub(start))
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dm %ds", m, s)
}

func stateClass(state store.BatchState) string {
	switch state {
	case store.BatchRunning:
		return "state-active"
	case store.BatchSucceeded:
		return "state-succeeded"
	case store.BatchFailed:
		return "state-failed"
	case store.BatchCancelled:
		return "state-cancelled"
	default:
		return ""
	}
}

func stateIcon(state store.BatchState) template.HTML {
	switch state {
	case store.BatchRunning:
		return "&#9654;"
	case store.BatchSucceeded:
		return "&#10003;"
	case store.BatchFailed:
		return "&#10007;"
	case store.BatchCancelled:
		return "&#9632;"
	default:
		return "&#8226;"
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
