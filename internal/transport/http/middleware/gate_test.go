package middleware_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/ErlanBelekov/tourbook/internal/transport/http/middleware"
	"github.com/gin-gonic/gin"
)

func TestGate_ExactlyOneOutcome(t *testing.T) {
	failure := errors.New("boom")

	tests := []struct {
		name       string
		check      func(*gin.Context) error
		wantNext   int
		wantErrors int
		wantStatus int
	}{
		{"continue", func(*gin.Context) error { return nil }, 1, 0, http.StatusOK},
		{"fail", func(*gin.Context) error { return failure }, 0, 1, http.StatusTeapot},
		{"redirect", func(*gin.Context) error { return &middleware.Redirect{Location: "/"} }, 0, 0, http.StatusFound},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var next, recorded int

			r := gin.New()
			r.Use(func(c *gin.Context) {
				c.Next()
				recorded = len(c.Errors)
				if recorded > 0 && !c.Writer.Written() {
					c.Status(http.StatusTeapot)
				}
			})
			r.GET("/", middleware.Gate(tc.check), func(c *gin.Context) {
				next++
				c.Status(http.StatusOK)
			})

			w := doGet(r, "/", nil)

			if next != tc.wantNext {
				t.Errorf("next handler ran %d times, want %d", next, tc.wantNext)
			}
			if recorded != tc.wantErrors {
				t.Errorf("recorded %d errors, want %d", recorded, tc.wantErrors)
			}
			if w.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tc.wantStatus)
			}
		})
	}
}

func TestGate_ChainStopsAtFirstFailure(t *testing.T) {
	var second bool

	r := gin.New()
	r.GET("/",
		middleware.Gate(func(*gin.Context) error { return errors.New("first") }),
		middleware.Gate(func(*gin.Context) error { second = true; return nil }),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	doGet(r, "/", nil)

	if second {
		t.Error("second gate ran after the first failed")
	}
}
