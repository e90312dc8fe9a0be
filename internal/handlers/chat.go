package handlers

import (
	"net"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
	"github.com/Ananth-NQI/clinic-leadbot/internal/services"
)

// ChatHandler serves the website chat widget.
type ChatHandler struct {
	engine *services.Engine
}

func NewChatHandler(engine *services.Engine) *ChatHandler {
	return &ChatHandler{engine: engine}
}

// ChatRequest is the widget payload.
type ChatRequest struct {
	Message string `json:"message"`
}

// Chat answers one widget message. Visitors are told apart by client IP.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid JSON payload",
		})
	}

	in := services.Inbound{
		Key:     "web:" + clientIP(c),
		Channel: models.ChannelWeb,
		Text:    req.Message,
	}
	reply, err := h.engine.Handle(c.UserContext(), in)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	zap.L().Debug("💬 Chat turn",
		zap.String("session", in.Key),
		zap.String("stage", reply.Stage.String()),
		zap.Bool("escalated", reply.Escalated),
	)
	return c.JSON(reply)
}

// clientIP is the peer address, or for a trusted proxy the right-most
// X-Forwarded-For hop that is not itself a trusted proxy. Hops further left
// are client supplied.
func clientIP(c *fiber.Ctx) string {
	peer := c.Context().RemoteIP().String()
	if !c.IsProxyTrusted() {
		return peer
	}

	trusted := c.App().Config().TrustedProxies
	ips := c.IPs()
	for i := len(ips) - 1; i >= 0; i-- {
		if !isTrustedProxy(ips[i], trusted) {
			return ips[i]
		}
	}
	if len(ips) > 0 {
		// every hop is a proxy, the left-most one is closest to the client
		return ips[0]
	}
	return peer
}

// isTrustedProxy matches ip against proxy addresses and CIDR ranges.
func isTrustedProxy(ip string, proxies []string) bool {
	addr := net.ParseIP(ip)
	if addr == nil {
		return false
	}
	for _, p := range proxies {
		if strings.Contains(p, "/") {
			if _, ipNet, err := net.ParseCIDR(p); err == nil && ipNet.Contains(addr) {
				return true
			}
			continue
		}
		if other := net.ParseIP(p); other != nil && other.Equal(addr) {
			return true
		}
	}
	return false
}
