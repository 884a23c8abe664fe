// Package wfecho serves WebFinger queries from labstack/echo.
package wfecho

import (
	"net/http"

	"github.com/0dayfall/webfinger"
	"github.com/0dayfall/webfinger/wfhttp"
	"github.com/labstack/echo/v4"
)

// Bind reads the WebFinger query of c.
func Bind(c echo.Context) (webfinger.Request, error) {
	return wfhttp.ParseRequest(c.Request())
}

// Respond writes resp as a JRD document.
func Respond(c echo.Context, status int, resp webfinger.Response) error {
	b, err := resp.MarshalJSON()
	if err != nil {
		return err
	}
	return c.Blob(status, webfinger.ContentTypeJRD, b)
}

// HTTPError converts err into an echo error with the status wfhttp.StatusCode assigns to it.
func HTTPError(err error) *echo.HTTPError {
	status := wfhttp.StatusCode(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	return echo.NewHTTPError(status, msg).SetInternal(err)
}

// Handler returns an echo handler answering WebFinger queries with resolver.
func Handler(resolver webfinger.Resolver) echo.HandlerFunc {
	return func(c echo.Context) error {
		req, err := Bind(c)
		if err != nil {
			return HTTPError(err)
		}
		resp, err := resolver.Resolve(c.Request().Context(), req)
		if err != nil {
			return HTTPError(err)
		}
		return Respond(c, http.StatusOK, req.Filter(resp))
	}
}

// Register mounts Handler on the well-known path of e for GET and HEAD.
func Register(e *echo.Echo, resolver webfinger.Resolver, m ...echo.MiddlewareFunc) {
	h := Handler(resolver)
	e.GET(webfinger.WellKnownPath, h, m...)
	e.HEAD(webfinger.WellKnownPath, h, m...)
}
