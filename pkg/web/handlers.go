package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/posecam/pkg/camera"
	"github.com/teslashibe/posecam/pkg/hub"
)

func (s *Server) handleStatus(c *fiber.Ctx) error {
	src := s.currentSource()
	if src == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no loop attached",
		})
	}
	return c.JSON(src.Status())
}

// handleScore returns the latest score, or 204 before the first one.
func (s *Server) handleScore(c *fiber.Ctx) error {
	if s.sink == nil {
		return c.SendStatus(fiber.StatusNoContent)
	}
	score, ok := s.sink.Latest()
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}
	return c.JSON(newScoreResponse(score, s.sink.Updated()))
}

func (s *Server) handleConfig(c *fiber.Ctx) error {
	src := s.currentSource()
	if src == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "no loop attached",
		})
	}
	return c.JSON(src.Config())
}

func (s *Server) handleDevices(c *fiber.Ctx) error {
	if s.devices == nil {
		return c.JSON([]camera.DeviceInfo{})
	}
	devices, err := s.devices.Devices(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	if devices == nil {
		devices = []camera.DeviceInfo{}
	}
	return c.JSON(devices)
}

// handleScoreWS sends the latest score on connect, then every new one.
func (s *Server) handleScoreWS(c *websocket.Conn) {
	var initial []hub.Message
	if s.sink != nil {
		if score, ok := s.sink.Latest(); ok {
			if msg, err := hub.EncodeJSON(newScoreResponse(score, s.sink.Updated())); err == nil {
				initial = append(initial, msg)
			}
		}
	}
	hub.NewClient(s.scoreHub, c, initial...).Run()
}

// handleStatusWS sends the current status on connect, then periodic updates.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	var initial []hub.Message
	if src := s.currentSource(); src != nil {
		if msg, err := hub.EncodeJSON(src.Status()); err == nil {
			initial = append(initial, msg)
		}
	}
	hub.NewClient(s.statusHub, c, initial...).Run()
}

// handleCameraWS streams rendered frames as binary JPEG messages.
func (s *Server) handleCameraWS(c *websocket.Conn) {
	hub.NewClient(s.cameraHub, c).Run()
}
