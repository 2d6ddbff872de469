package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MaxWebhookBody предел размера тела webhook-запроса
const MaxWebhookBody = 64 << 10

// WebhookEvent событие хоста, пришедшее по HTTP вместо NATS
type WebhookEvent struct {
	Kind string        `json:"kind"`
	Args []interface{} `json:"args"`
}

// handleWebhook принимает событие с подписью X-Webhook-Signature: sha256=<hex>
func (s *Server) handleWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxWebhookBody)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, GenericResponse{Success: false, Message: "Слишком большое тело"})
			return
		}
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Не удалось прочитать тело"})
		return
	}

	if !verifySignature(s.config.WebhookSecret, body, c.GetHeader("X-Webhook-Signature")) {
		s.log.Warn("📧 Webhook с неверной подписью от %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, GenericResponse{Success: false, Message: "Неверная подпись"})
		return
	}

	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Kind == "" {
		c.JSON(http.StatusBadRequest, GenericResponse{Success: false, Message: "Неверный формат события"})
		return
	}

	if err := s.config.World.PublishEvent(ev.Kind, ev.Args...); err != nil {
		c.JSON(statusFor(err), GenericResponse{Success: false, Message: err.Error()})
		return
	}
	s.log.Debug("📧 Webhook событие %s от %s", ev.Kind, c.ClientIP())
	c.JSON(http.StatusAccepted, GenericResponse{Success: true, Message: "Событие принято"})
}

// Sign подпись тела для заголовка X-Webhook-Signature
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func verifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(signature), []byte(Sign(secret, body)))
}
