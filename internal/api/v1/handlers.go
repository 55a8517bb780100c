package apiv1

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

// DefaultSpecPath is where the server looks for the OpenAPI document.
const DefaultSpecPath = "public/docs/v1/openapi.yml"

type Pong struct {
	Ping string `json:"ping"`
}

// APIServer serves the versioned meta endpoints.
type APIServer struct {
	doc *openapi3.T
}

// NewAPIServer creates a new API server instance. doc may be nil.
func NewAPIServer(doc *openapi3.T) *APIServer {
	return &APIServer{doc: doc}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(Pong{Ping: "pong"})
}

// GetSpec returns the loaded OpenAPI document as JSON.
func (s *APIServer) GetSpec(c *fiber.Ctx) error {
	if s.doc == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "API document not loaded"})
	}
	return c.JSON(s.doc)
}

// RegisterHandlers mounts the server on r.
func RegisterHandlers(r fiber.Router, s *APIServer) {
	r.Get("/ping", s.GetPing)
	r.Get("/openapi.json", s.GetSpec)
}

// LoadSpec reads and validates the OpenAPI document at path.
func LoadSpec(path string) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}
	return doc, nil
}

var fiberParam = regexp.MustCompile(`:([A-Za-z0-9_]+)`)

// DocPath converts a Fiber route pattern to its OpenAPI form, e.g.
// /api/notifications/:id/read -> /api/notifications/{id}/read.
func DocPath(route string) string {
	return fiberParam.ReplaceAllString(route, "{$1}")
}

// Documented reports whether the document describes method on route. The
// document's servers are ignored; paths are absolute.
func Documented(doc *openapi3.T, method, route string) bool {
	if doc == nil || doc.Paths == nil {
		return false
	}
	item := doc.Paths.Find(DocPath(route))
	if item == nil {
		return false
	}
	return item.GetOperation(strings.ToUpper(method)) != nil
}
