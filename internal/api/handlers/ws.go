// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wingedpig/aicompanion/internal/broadcast"
	"github.com/wingedpig/aicompanion/internal/connection"
	"github.com/wingedpig/aicompanion/internal/orchestrator"
	"github.com/wingedpig/aicompanion/internal/session"
	"github.com/wingedpig/aicompanion/internal/wire"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler serves the single /ws upgrade endpoint, mediating between one
// client socket and the orchestrator's SendPrompt pipeline.
type WSHandler struct {
	orch      *orchestrator.Orchestrator
	sessions  *session.Manager
	conns     *connection.Manager
	broadcast *broadcast.Broadcaster
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(orch *orchestrator.Orchestrator, sessions *session.Manager, conns *connection.Manager, b *broadcast.Broadcaster) *WSHandler {
	return &WSHandler{orch: orch, sessions: sessions, conns: conns, broadcast: b}
}

// ServeHTTP upgrades the connection and runs its read/write loops until the
// client disconnects.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	deviceID := r.URL.Query().Get("deviceId")
	fp := connection.DeriveFingerprint(deviceID, r.UserAgent())
	client := h.conns.Connect(fp, conn)
	defer h.conns.Disconnect(fp)

	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		client.TouchPong()
		return nil
	})

	pingTicker := time.NewTicker(54 * time.Second)
	defer pingTicker.Stop()
	go func() {
		for range pingTicker.C {
			if err := client.WriteJSON(wire.NewEgress(wire.TypePong, nil)); err != nil {
				return
			}
		}
	}()

	readCh := make(chan wire.Ingress, 10)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			_, msgBytes, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg wire.Ingress
			if json.Unmarshal(msgBytes, &msg) == nil {
				readCh <- msg
			}
		}
	}()

	for {
		select {
		case msg := <-readCh:
			h.dispatch(client, msg)
		case <-closed:
			return
		}
	}
}

func withRequestID(e wire.Egress, requestID string) wire.Egress {
	e.RequestID = requestID
	return e
}

func (h *WSHandler) dispatch(client *connection.Client, msg wire.Ingress) {
	switch msg.Type {
	case wire.TypePing:
		client.WriteJSON(wire.NewEgress(wire.TypePong, nil))

	case wire.TypeRegisterDevice:
		// fingerprint already bound at connect time; nothing further to do

	case wire.TypeSubscribe:
		if msg.SessionID != "" {
			client.Subscribe(msg.SessionID)
			h.broadcast.Drain(msg.SessionID, client)
			if s, ok := h.sessions.BySessionOrClaudeID(msg.SessionID); ok {
				s.MarkForegrounded()
			}
		}

	case wire.TypeAsk:
		dir := msg.WorkingDirectory
		go func() {
			if err := h.orch.SendPrompt(context.Background(), dir, msg.Prompt); err != nil {
				log.Printf("ws: send prompt failed: %v", err)
				client.WriteJSON(wire.NewErrorEgress(msg.RequestID, wire.ErrInternal, err.Error()))
			}
		}()

	case wire.TypeStreamStart:
		sessionID, reused, err := h.orch.StartSession(msg.WorkingDirectory)
		if err != nil {
			client.WriteJSON(wire.NewErrorEgress(msg.RequestID, wire.ErrAccessDenied, err.Error()))
			return
		}
		client.Subscribe(sessionID)
		client.WriteJSON(withRequestID(wire.NewEgress(wire.TypeStreamData, map[string]interface{}{
			"sessionId": sessionID,
			"reused":    reused,
		}), msg.RequestID))

	case wire.TypeStreamSend:
		go func() {
			if err := h.orch.SendToSession(context.Background(), msg.SessionID, msg.Prompt); err != nil {
				log.Printf("ws: stream send failed: %v", err)
				client.WriteJSON(wire.NewErrorEgress(msg.RequestID, wire.ErrInternal, err.Error()))
			}
		}()

	case wire.TypeStreamClose:
		if err := h.orch.CloseSession(msg.SessionID); err != nil {
			client.WriteJSON(wire.NewErrorEgress(msg.RequestID, wire.ErrSessionNotFound, err.Error()))
			return
		}
		client.Unsubscribe(msg.SessionID)

	case wire.TypeSetWorkingDirectory:
		if _, err := h.sessions.ValidateDirectory(msg.Path); err != nil {
			client.WriteJSON(wire.NewErrorEgress(msg.RequestID, wire.ErrAccessDenied, err.Error()))
			return
		}
		client.WriteJSON(withRequestID(wire.NewEgress(wire.TypeStreamData, map[string]interface{}{"valid": true}), msg.RequestID))

	case wire.TypeAICLICommand:
		go func() {
			err := h.orch.RunCommand(context.Background(), msg.Cwd, msg.Command, func(e wire.Egress) {
				client.WriteJSON(withRequestID(e, msg.RequestID))
			})
			if err != nil {
				log.Printf("ws: aicli command failed: %v", err)
			}
		}()

	case wire.TypePermission:
		h.orch.ResolvePermission(msg.RequestID, msg.Response)

	case wire.TypeClientBackgrounding:
		if msg.SessionID != "" {
			if s, ok := h.sessions.Get(msg.SessionID); ok {
				s.MarkBackgrounded()
			}
		}

	default:
		client.WriteJSON(wire.NewErrorEgress(msg.RequestID, wire.ErrInvalidMessage, "unrecognized message type"))
	}
}
