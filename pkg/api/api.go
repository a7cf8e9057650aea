// Package api implements the REST API for single evaluations and batch jobs.
package api

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/lemonberrylabs/deskcalc/pkg/batch"
	"github.com/lemonberrylabs/deskcalc/pkg/runner"
	"github.com/lemonberrylabs/deskcalc/pkg/store"
	"github.com/lemonberrylabs/deskcalc/pkg/types"
)

// Config controls optional server behaviour.
type Config struct {
	// AccessLog enables Fiber's request logger.
	AccessLog bool
}

// Server is the REST API server.
type Server struct {
	app    *fiber.App
	runner *runner.Runner
}

// New creates a new API server backed by r.
func New(r *runner.Runner, cfg Config) *Server {
	srv := &Server{runner: r}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		BodyLimit:             batch.MaxSourceSize * 2,
	})

	app.Use(recover.New())
	if cfg.AccessLog {
		app.Use(logger.New())
	}

	// Evaluate API
	app.Post("/v1/evaluate", srv.evaluate)
	app.Get("/v1/evaluate", srv.evaluate)

	// Batches API
	app.Post("/v1/batches", srv.createBatch)
	app.Get("/v1/batches", srv.listBatches)
	app.Get("/v1/batches/:batch", srv.getBatch)
	app.Post("/v1/batches/:batch\\:cancel", srv.cancelBatch)
	app.Delete("/v1/batches/:batch", srv.deleteBatch)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

// --- Evaluate Handler ---

type evaluateRequest struct {
	Expression *string `json:"expression"`
	Strict     *bool   `json:"strict"`
}

func (s *Server) evaluate(c *fiber.Ctx) error {
	var req evaluateRequest
	if c.Method() == fiber.MethodGet {
		if q, ok := c.Queries()["expression"]; ok {
			req.Expression = &q
		}
		if _, ok := c.Queries()["strict"]; ok {
			strict := c.QueryBool("strict", false)
			req.Strict = &strict
		}
	} else if err := c.BodyParser(&req); err != nil {
		return apiError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	if req.Expression == nil {
		return apiError(c, 400, "INVALID_ARGUMENT", "expression is required")
	}

	strict := s.runner.StrictDefault()
	if req.Strict != nil {
		strict = *req.Strict
	}

	result, err := s.runner.Engine(strict).Diagnose(*req.Expression)
	resp := fiber.Map{
		"expression": *req.Expression,
		"result":     result,
	}
	if err != nil {
		resp["error"] = calcErrorToJSON(err)
	}
	return c.JSON(resp)
}

// --- Batch Handlers ---

type createBatchRequest struct {
	DisplayName string   `json:"displayName"`
	Expressions []string `json:"expressions"`
	Source      string   `json:"source"`
	Strict      *bool    `json:"strict"`
}

func (s *Server) createBatch(c *fiber.Ctx) error {
	var req createBatchRequest
	if err := c.BodyParser(&req); err != nil {
		return apiError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	var (
		entries []batch.Entry
		strict  = s.runner.StrictDefault()
		name    = req.DisplayName
	)

	switch {
	case req.Source != "" && len(req.Expressions) > 0:
		return apiError(c, 400, "INVALID_ARGUMENT", "only one of expressions or source may be set")
	case req.Source != "":
		file, err := batch.Parse([]byte(req.Source))
		if err != nil {
			return apiError(c, 400, "INVALID_ARGUMENT", fmt.Sprintf("invalid batch definition: %v", err))
		}
		entries = file.Entries
		strict = file.Strict
		if name == "" {
			name = file.Name
		}
	case len(req.Expressions) > 0:
		if len(req.Expressions) > batch.MaxExpressions {
			return apiError(c, 400, "INVALID_ARGUMENT",
				fmt.Sprintf("batch has %d expressions, maximum is %d", len(req.Expressions), batch.MaxExpressions))
		}
		entries = batch.EntriesFromStrings(req.Expressions)
	default:
		return apiError(c, 400, "INVALID_ARGUMENT", "expressions or source is required")
	}

	if req.Strict != nil {
		strict = *req.Strict
	}

	b := s.runner.Submit(name, entries, strict)
	return c.Status(200).JSON(batchToJSON(b))
}

func (s *Server) getBatch(c *fiber.Ctx) error {
	b, err := s.runner.Store().GetBatch(c.Params("batch"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(batchToJSON(b))
}

func (s *Server) listBatches(c *fiber.Ctx) error {
	batches := s.runner.Store().ListBatches()

	items := make([]fiber.Map, len(batches))
	for i, b := range batches {
		items[i] = batchToJSON(b)
	}

	return c.JSON(fiber.Map{
		"batches": items,
	})
}

func (s *Server) cancelBatch(c *fiber.Ctx) error {
	b, err := s.runner.Cancel(c.Params("batch"))
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(batchToJSON(b))
}

func (s *Server) deleteBatch(c *fiber.Ctx) error {
	if err := s.runner.Delete(c.Params("batch")); err != nil {
		return storeError(c, err)
	}
	return c.JSON(fiber.Map{})
}

// --- Directory Loading ---

// LoadDir submits every .yaml, .yml and .json batch file in dir. Files that
// cannot be read or parsed are logged and skipped.
func (s *Server) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("reading batch directory: %w", err)
	}

	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		if ext != ".yaml" && ext != ".yml" && ext != ".json" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			log.Printf("Warning: could not read %q: %v", name, err)
			continue
		}

		file, err := batch.Parse(data)
		if err != nil {
			log.Printf("Warning: could not parse %q: %v", name, err)
			continue
		}

		displayName := file.Name
		if displayName == "" {
			displayName = strings.TrimSuffix(name, ext)
		}
		b := s.runner.Submit(displayName, file.Entries, file.Strict)
		loaded++
		log.Printf("Submitted batch %s from %s (%d expressions)", b.Name, name, len(file.Entries))
	}

	log.Printf("Loaded %d batch file(s) from %s", loaded, dir)
	return loaded, nil
}

// --- Helpers ---

func apiError(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

func storeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apiError(c, 404, "NOT_FOUND", err.Error())
	case errors.Is(err, store.ErrNotActive):
		return apiError(c, 400, "FAILED_PRECONDITION", err.Error())
	default:
		return apiError(c, 500, "INTERNAL", err.Error())
	}
}

func calcErrorToJSON(err error) fiber.Map {
	var ce *types.CalcError
	if errors.As(err, &ce) {
		return fiber.Map(ce.ToMap())
	}
	return fiber.Map{"kind": "Error", "message": err.Error()}
}

func batchToJSON(b *store.Batch) fiber.Map {
	result := fiber.Map{
		"name":               b.Name,
		"id":                 b.ID,
		"state":              b.State,
		"strict":             b.Strict,
		"expressionCount":    len(b.Entries),
		"failedExpectations": b.Failed,
		"createTime":         b.CreateTime.Format(time.RFC3339),
	}

	if b.DisplayName != "" {
		result["displayName"] = b.DisplayName
	}
	if len(b.Outcomes) > 0 {
		results := make([]fiber.Map, len(b.Outcomes))
		for i, o := range b.Outcomes {
			item := fiber.Map{
				"expression": o.Expression,
				"result":     o.Result,
				"passed":     o.Passed,
			}
			if o.HasExpect {
				item["expect"] = o.Expect
			}
			results[i] = item
		}
		result["results"] = results
	}
	if b.Error != "" {
		result["error"] = b.Error
	}
	if !b.EndTime.IsZero() {
		result["endTime"] = b.EndTime.Format(time.RFC3339)
	}

	return result
}
