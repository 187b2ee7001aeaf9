package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiddlewareApp(f *fixture) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		if id := c.Get("X-Employee-ID"); id != "" {
			c.Locals(LocalsEmployeeID, id)
		}
		return c.Next()
	})
	app.Get("/audit", f.svc.RbacMiddleware(PermViewAllEmployees, ResourceEmployees), func(c *fiber.Ctx) error {
		actor, _ := ActorFromCtx(c)
		return c.JSON(fiber.Map{"actor": actor})
	})
	return app
}

func TestRbacMiddleware(t *testing.T) {
	f := newFixture(t)
	app := newMiddlewareApp(f)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"permission held", "1", http.StatusOK},
		{"permission via non-hr role", "9", http.StatusOK},
		{"permission missing", "5", http.StatusForbidden},
		{"unknown employee", "999", http.StatusForbidden},
		{"no actor", "", http.StatusUnauthorized},
		{"garbage actor", "abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/audit", nil)
			if tt.header != "" {
				req.Header.Set("X-Employee-ID", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			last := f.lastLog(t)
			assert.Equal(t, tt.status == http.StatusOK, last.Success)
			assert.Equal(t, ResourceEmployees, last.ResourceType)
		})
	}
}

func TestActorFromCtx(t *testing.T) {
	app := fiber.New()
	var got []uint
	app.Get("/", func(c *fiber.Ctx) error {
		for _, v := range []interface{}{uint(3), 7, "10", "x", 0, nil} {
			c.Locals(LocalsEmployeeID, v)
			id, _ := ActorFromCtx(c)
			got = append(got, id)
		}
		return nil
	})

	_, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 7, 10, 0, 0, 0}, got)
}
