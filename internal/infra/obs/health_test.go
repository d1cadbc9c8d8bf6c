package obs

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func healthRouter(h HealthHandlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/livez", h.Livez)
	router.GET("/readyz", h.Readyz)
	return router
}

func TestLivezAlwaysOK(t *testing.T) {
	router := healthRouter(HealthHandlers{StorePing: func() error { return errors.New("down") }})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("livez = %d, want 200", rec.Code)
	}
}

func TestReadyzReflectsStorePing(t *testing.T) {
	router := healthRouter(HealthHandlers{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz without hook = %d, want 200", rec.Code)
	}

	router = healthRouter(HealthHandlers{StorePing: func() error { return errors.New("mongo unreachable") }})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with failing store = %d, want 503", rec.Code)
	}
}
