package rest

import (
	"errors"
	"net/http"

	"github.com/0dayfall/webfinger"
	"github.com/0dayfall/webfinger/internal/monitoring"
	"github.com/0dayfall/webfinger/wfecho"
	"github.com/0dayfall/webfinger/wfhttp"
	"github.com/gorilla/mux"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
)

const (
	healthPath  = "/health"
	metricsPath = "/metrics"
)

// StatusBadRequest is recorded for queries rejected before the store is consulted.
const StatusBadRequest = "bad_request"

// Routes are the endpoints served by both routers.
type Routes struct {
	Resolver webfinger.Resolver
	Metrics  *monitoring.Metrics
	Health   http.Handler
	Logger   logrus.FieldLogger
}

// NewMuxRouter serves routes with gorilla/mux. Methods other than GET and HEAD on the
// WebFinger path get a 405 from wfhttp so the Allow header is set.
func NewMuxRouter(routes Routes) http.Handler {
	r := mux.NewRouter()
	r.Handle(webfinger.WellKnownPath, routes.countBadRequests(&wfhttp.Handler{
		Resolver: routes.Resolver,
		ErrorLog: routes.Logger,
	}))
	if routes.Health != nil {
		r.Handle(healthPath, routes.Health).Methods(http.MethodGet)
	}
	if routes.Metrics != nil {
		r.Handle(metricsPath, routes.Metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// NewEchoRouter serves routes with echo, traced by otelecho under service.
func NewEchoRouter(routes Routes, service string) http.Handler {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(otelecho.Middleware(service))

	wfecho.Register(e, routes.Resolver, routes.echoCountBadRequests)
	if routes.Health != nil {
		e.GET(healthPath, echo.WrapHandler(routes.Health))
	}
	if routes.Metrics != nil {
		e.GET(metricsPath, echo.WrapHandler(routes.Metrics.Handler()))
	}
	return e
}

func (routes Routes) countBadRequests(next http.Handler) http.Handler {
	if routes.Metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := &monitoring.ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
		next.ServeHTTP(ww, r)
		if ww.StatusCode == http.StatusBadRequest {
			routes.Metrics.RecordWebFingerRequest(StatusBadRequest)
		}
	})
}

func (routes Routes) echoCountBadRequests(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		err := next(c)
		var he *echo.HTTPError
		if routes.Metrics != nil && errors.As(err, &he) && he.Code == http.StatusBadRequest {
			routes.Metrics.RecordWebFingerRequest(StatusBadRequest)
		}
		return err
	}
}
