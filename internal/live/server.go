package live

import (
	"net/http"
	"time"
)

// NewServer serves the websocket feed on /ws plus /metrics and /health on
// the ingestor's side port.
func NewServer(addr string, hub *Hub, metrics http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	if metrics != nil {
		mux.Handle("/metrics", metrics)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
