package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	config "github.com/phillip/contribution-pipeline-go/config"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the socket is already behind token auth
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveUpdates upgrades the request and registers the socket with the
// broadcast hub. The hub owns the connection from then on.
func LiveUpdates(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade has already written the error response
			return
		}
		id := cfg.Hub.Register(conn)
		if cfg.Log != nil {
			cfg.Log.Debug().Str("client", id).Int("clients", cfg.Hub.Count()).Msg("live client connected")
		}
	}
}
