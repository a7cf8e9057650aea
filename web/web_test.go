package web

import (
	"html"
	"io"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/deskcalc/pkg/batch"
	"github.com/lemonberrylabs/deskcalc/pkg/runner"
	"github.com/lemonberrylabs/deskcalc/pkg/store"
)

func setupTestApp(t *testing.T) (*fiber.App, *runner.Runner) {
	t.Helper()
	r := runner.New(store.New(), nil)
	t.Cleanup(r.Shutdown)
	h := New(r)
	app := fiber.New()
	h.Register(app)
	return app, r
}

func get(t *testing.T, app *fiber.App, target string) (int, string) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", target, nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, html.UnescapeString(string(body))
}

func press(t *testing.T, app *fiber.App, display, key string) (int, string) {
	t.Helper()
	form := url.Values{"display": {display}, "key": {key}}
	req := httptest.NewRequest("POST", "/ui/press", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, html.UnescapeString(string(body))
}

func TestKeypadPage(t *testing.T) {
	app, _ := setupTestApp(t)

	code, page := get(t, app, "/ui")
	if code != 200 {
		t.Fatalf("expected 200, got %d: %s", code, page)
	}
	if !strings.Contains(page, "Calculator") {
		t.Error("expected page title in response")
	}
	if !strings.Contains(page, "deskcalc") {
		t.Error("expected brand in response")
	}
	for _, key := range []string{`value="7"`, `value="C"`, `value="="`, `value="<-"`} {
		if !strings.Contains(page, key) {
			t.Errorf("expected key button %s in response", key)
		}
	}
	if !strings.Contains(page, "No calculations yet") {
		t.Error("expected empty history message")
	}
}

func TestKeypadPageWithDisplay(t *testing.T) {
	app, _ := setupTestApp(t)

	_, page := get(t, app, "/ui?display="+url.QueryEscape("12*3"))
	if !strings.Contains(page, `value="12*3"`) {
		t.Error("expected display value in response")
	}
}

func TestPressAppendsKey(t *testing.T) {
	app, _ := setupTestApp(t)

	code, page := press(t, app, "3+4", "*")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(page, `value="3+4*"`) {
		t.Error("expected appended display in response")
	}
}

func TestPressEquals(t *testing.T) {
	app, _ := setupTestApp(t)

	_, page := press(t, app, "3+4*2", "=")
	if !strings.Contains(page, `value="11.0"`) {
		t.Error("expected result in display")
	}
	if strings.Contains(page, `class="display display-error"`) {
		t.Error("unexpected error styling")
	}
	if !strings.Contains(page, "<code>3+4*2</code>") {
		t.Error("expected expression in history")
	}
}

func TestPressEqualsError(t *testing.T) {
	app, _ := setupTestApp(t)

	_, page := press(t, app, "5/0", "=")
	if !strings.Contains(page, `value="Error!"`) {
		t.Error("expected sentinel in display")
	}
	if !strings.Contains(page, `class="display display-error"`) {
		t.Error("expected error styling on display")
	}
}

func TestPressClearAndBackspace(t *testing.T) {
	app, _ := setupTestApp(t)

	_, page := press(t, app, "123", "<-")
	if !strings.Contains(page, `value="12"`) {
		t.Error("expected backspace to remove last character")
	}
	_, page = press(t, app, "123", "C")
	if !strings.Contains(page, `value=""`) {
		t.Error("expected cleared display")
	}
}

func TestPressUnknownKey(t *testing.T) {
	app, _ := setupTestApp(t)

	code, page := press(t, app, "1", "x")
	if code != 400 {
		t.Fatalf("expected 400, got %d", code)
	}
	if !strings.Contains(page, "Unknown key") {
		t.Error("expected unknown key message")
	}
	if !strings.Contains(page, `value="1"`) {
		t.Error("expected display to be unchanged")
	}
}

func TestBatchList(t *testing.T) {
	app, r := setupTestApp(t)

	code, page := get(t, app, "/ui/batches")
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(page, "No batches submitted") {
		t.Error("expected empty state message")
	}

	r.Submit("nightly", batch.EntriesFromStrings([]string{"1+1"}), false)
	r.Wait()

	_, page = get(t, app, "/ui/batches")
	if !strings.Contains(page, "nightly") {
		t.Error("expected batch name in response")
	}
	if !strings.Contains(page, "1 succeeded") {
		t.Error("expected succeeded count in response")
	}
}

func TestBatchDetail(t *testing.T) {
	app, r := setupTestApp(t)

	b := r.Submit("checks", []batch.Entry{
		{Expression: "3+4*2", Expect: "11.0", HasExpect: true},
		{Expression: "5/0"},
	}, false)
	r.Wait()

	code, page := get(t, app, "/ui/batches/"+b.ID)
	if code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
	for _, want := range []string{"checks", "SUCCEEDED", "<code>11.0</code>", "Error!"} {
		if !strings.Contains(page, want) {
			t.Errorf("expected %q in response", want)
		}
	}
	if strings.Contains(page, "Cancel Batch") {
		t.Error("finished batch should not offer cancel")
	}
}

func TestBatchNotFound(t *testing.T) {
	app, _ := setupTestApp(t)

	code, page := get(t, app, "/ui/batches/nonexistent")
	if code != 404 {
		t.Fatalf("expected 404, got %d", code)
	}
	if !strings.Contains(page, "Not Found") {
		t.Error("expected not found message")
	}
}

func TestCancelBatchRedirects(t *testing.T) {
	app, r := setupTestApp(t)

	b := r.Submit("", batch.EntriesFromStrings([]string{"1"}), false)
	r.Wait()

	resp, err := app.Test(httptest.NewRequest("POST", "/ui/batches/"+b.ID+"/cancel", nil), -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 303 {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/ui/batches/"+b.ID {
		t.Fatalf("unexpected redirect %s", loc)
	}
}

func TestRootRedirect(t *testing.T) {
	app, _ := setupTestApp(t)

	req := httptest.NewRequest("GET", "/", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != 302 {
		t.Fatalf("expected 302 redirect, got %d", resp.StatusCode)
	}
	loc := resp.Header.Get("Location")
	if loc != "/ui" {
		t.Fatalf("expected redirect to /ui, got %s", loc)
	}
}
