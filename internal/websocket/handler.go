package websocket

import (
	"context"
	"encoding/json"

	"ai-pdfchat/internal/pkg/logger"
	"ai-pdfchat/pkg/progress"
)

// ServeProgress streams the progress events of sessionID to c until either
// side goes away. It returns only after the writer has stopped touching c.
func ServeProgress(bus *progress.Bus, c Conn, sessionID string, log logger.ILogger) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates, err := bus.Subscribe(ctx, sessionID)
	if err != nil {
		log.Error("ProgressSocket", "Subscribe failed", map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		_ = c.Close()
		return
	}

	client := &Client{Conn: c, SessionID: sessionID, Send: make(chan []byte, 64), logger: log}

	go func() {
		defer close(client.Send)
		for ev := range updates {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			select {
			case client.Send <- data:
			default:
				log.Warn("ProgressSocket", "Send buffer full, dropping event", map[string]interface{}{"session_id": sessionID})
			}
		}
	}()

	written := make(chan struct{})
	go func() {
		defer close(written)
		client.writePump()
	}()
	client.readPump()
	cancel()
	<-written
}
