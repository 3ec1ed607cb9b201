package main

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/invopop/jsonschema"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// newUpgrader allows non-browser clients and, when origins is non-empty,
// only browsers whose Origin host is listed. The browser client is served by
// a separate static host, so same-host checks do not apply.
func newUpgrader(origins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(origins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // Non-browser clients don't send Origin
			}
			u, err := url.Parse(origin)
			if err != nil {
				return false
			}
			return slices.Contains(origins, u.Host)
		},
	}
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures HTTP routes. admin may be nil.
func SetupRoutes(hub *Hub, admin *AdminAuth) *http.ServeMux {
	mux := http.NewServeMux()
	upgrader := newUpgrader(hub.cfg.AllowedOrigins)

	serveWS := func(w http.ResponseWriter, r *http.Request) {
		codec, err := ParseCodec(r.URL.Query().Get("codec"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		ip := extractIP(r)
		if !hub.Admit(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.Release(ip)
			log.Printf("upgrade error: %v", err)
			return
		}

		client := NewClient(hub, conn, ip, codec)
		client.id = hub.Join(client)
		log.Printf("[%s] player %d connected from %s (%s)", client.traceID, client.id, ip, codec)

		go client.WritePump()
		go client.ReadPump()
	}
	mux.HandleFunc("/ws", serveWS)
	// Browser clients dial the bare host
	mux.HandleFunc("/{$}", serveWS)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	schema, err := protocolSchema()
	if err != nil {
		log.Printf("schema: %v", err)
	}
	mux.HandleFunc("/schema", func(w http.ResponseWriter, r *http.Request) {
		if schema == nil {
			http.Error(w, "schema unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/schema+json")
		w.Write(schema)
	})

	mux.HandleFunc("/qr.png", func(w http.ResponseWriter, r *http.Request) {
		png, err := qrcode.Encode(joinURL(r), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr encode failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(png)
	})

	if admin != nil {
		mux.HandleFunc("POST /admin/login", func(w http.ResponseWriter, r *http.Request) {
			var req struct {
				Password string `json:"password"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, "bad request", http.StatusBadRequest)
				return
			}
			token, err := admin.Login(req.Password, extractIP(r))
			switch {
			case errors.Is(err, ErrLoginThrottle):
				http.Error(w, err.Error(), http.StatusTooManyRequests)
				return
			case err != nil:
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}
			writeJSON(w, map[string]string{"token": token})
		})

		mux.HandleFunc("GET /admin/stats", func(w http.ResponseWriter, r *http.Request) {
			tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || admin.ValidateToken(tok) != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			writeJSON(w, hub.Stats())
		})
	}

	return mux
}

// joinURL is the websocket address a client on the same network would dial.
func joinURL(r *http.Request) string {
	scheme := "ws"
	if r.TLS != nil {
		scheme = "wss"
	}
	return scheme + "://" + r.Host + "/ws"
}

// protocolSchema describes the client->server payloads
func protocolSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{}
	doc := map[string]*jsonschema.Schema{
		"envelope":     reflector.Reflect(&Envelope{}),
		MsgPlayerState: reflector.Reflect(&PlayerState{}),
		MsgEatFood:     reflector.Reflect(&Position{}),
	}
	return json.MarshalIndent(doc, "", "  ")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write json: %v", err)
	}
}
