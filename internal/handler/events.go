package handler

import (
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/dharmasatrya/storefront/internal/events"
	"github.com/dharmasatrya/storefront/internal/session"
)

// Messages the tab sends over the events socket.
const (
	MessageLookup   = "buscarUbicacion"
	MessageFilter   = "filtrar"
	MessageLocation = "ubicacionActual"
)

// Events upgrades to a websocket that carries session events to the tab and keystrokes
// back from it.
func (h *Handler) Events(c echo.Context) error {
	s := h.session(c)

	conn, err := events.Upgrader.Upgrade(c.Response(), c.Request(), c.Response().Header())
	if err != nil {
		h.logger.Debug("websocket upgrade failed", zap.String("session", s.ID), zap.Error(err))
		return nil
	}

	h.hub.Serve(s.ID, conn, func(msg events.Message) {
		h.onMessage(s, msg)
	})
	return nil
}

func (h *Handler) onMessage(s *session.Session, msg events.Message) {
	switch msg.Type {
	case MessageLookup:
		s.SuggestLocations(msg.Field, msg.Query, h.opts.LookupTimeout)
	case MessageFilter:
		s.SetQuery(msg.Query)
	case MessageLocation:
		s.Navigator.SetLocation(msg.Query)
	default:
		h.logger.Debug("ignoring unknown message", zap.String("session", s.ID), zap.String("type", msg.Type))
	}
}
