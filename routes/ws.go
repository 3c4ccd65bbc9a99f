package routes

import (
	"fmt"
	"net/http"

	"vidserve/auth"
	"vidserve/config"
	"vidserve/logger"
	"vidserve/notify"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// LiveHandler upgrades the connection and registers it as a live progress
// listener for the authenticated principal. Browsers cannot set headers on
// websocket requests, so the token rides in the query string.
func LiveHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	token := r.URL.Query().Get("token")
	claims, err := auth.VerifyAccountJWT(token, auth.VerifyConfig{
		SecretKey: []byte(config.GetJWTSecret()),
	})
	if err != nil {
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("websocket upgrade failed: %v", err)
		return
	}

	logger.Debugf("live listener connected: owner=%s", claims.Subject)
	notify.Serve(conn, claims.Subject)
}
