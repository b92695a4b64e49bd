package console

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"config-watch/internal/engine"
	"config-watch/internal/store"
)

type fetchRequest struct {
	Source string `json:"source"`
}

type filterRequest struct {
	Filter string `json:"filter"`
}

type healthData struct {
	Push     bool `json:"push"`
	Watchers int  `json:"watchers"`
}

func (s *Server) getView(c echo.Context) error {
	frame, err := s.ctrl.Frame(c.Request().Context())
	if err != nil {
		return writeIntentErr(c, err)
	}
	return writeJSON(c, http.StatusOK, OK(frame))
}

func (s *Server) getFocus(c echo.Context) error {
	fs, err := s.ctrl.FocusState(c.Request().Context())
	if err != nil {
		return writeIntentErr(c, err)
	}
	return writeJSON(c, http.StatusOK, OK(fs))
}

func (s *Server) getHealth(c echo.Context) error {
	data := healthData{Watchers: s.hub.Watchers()}
	if s.push != nil {
		data.Push = s.push.Connected()
	}
	return writeJSON(c, http.StatusOK, OK(data))
}

func (s *Server) postReload(c echo.Context) error {
	if err := s.ctrl.Reload(c.Request().Context()); err != nil {
		return writeIntentErr(c, err)
	}
	return writeJSON(c, http.StatusOK, OK(nil))
}

func (s *Server) postFetch(c echo.Context) error {
	var req fetchRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return writeJSON(c, http.StatusBadRequest, Err("invalid request body"))
		}
	}
	if err := s.ctrl.Fetch(c.Request().Context(), strings.TrimSpace(req.Source)); err != nil {
		return writeIntentErr(c, err)
	}
	return writeJSON(c, http.StatusOK, OK("fetch requested"))
}

func (s *Server) postTestAll(c echo.Context) error {
	if err := s.ctrl.TestAll(c.Request().Context()); err != nil {
		return writeIntentErr(c, err)
	}
	return writeJSON(c, http.StatusOK, OK("test run requested"))
}

func (s *Server) postTestOne(c echo.Context) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return writeJSON(c, http.StatusBadRequest, Err("missing config id"))
	}
	if err := s.ctrl.TestOne(c.Request().Context(), store.ID(id)); err != nil {
		return writeIntentErr(c, err)
	}
	return writeJSON(c, http.StatusOK, OK("test requested"))
}

func (s *Server) postFilter(c echo.Context) error {
	var req filterRequest
	if err := c.Bind(&req); err != nil {
		return writeJSON(c, http.StatusBadRequest, Err("invalid request body"))
	}
	filter, err := engine.ParseFilter(req.Filter)
	if err != nil {
		return writeJSON(c, http.StatusBadRequest, Err(err.Error()))
	}
	if err := s.ctrl.SetFilter(c.Request().Context(), filter); err != nil {
		return writeIntentErr(c, err)
	}
	return writeJSON(c, http.StatusOK, OK(filter))
}

func (s *Server) postCloseFocus(c echo.Context) error {
	if err := s.ctrl.CloseFocus(c.Request().Context()); err != nil {
		return writeIntentErr(c, err)
	}
	return writeJSON(c, http.StatusOK, OK(nil))
}

func writeIntentErr(c echo.Context, err error) error {
	switch {
	case errors.Is(err, engine.ErrBusy), errors.Is(err, engine.ErrNothingToTest):
		return writeJSON(c, http.StatusConflict, Err(err.Error()))
	case errors.Is(err, engine.ErrStopped):
		return writeJSON(c, http.StatusServiceUnavailable, Err(err.Error()))
	default:
		return writeJSON(c, http.StatusInternalServerError, Err(err.Error()))
	}
}
