package controllers

import (
	"time"

	"shortsguard/backend/app/dto"
	jwtutil "shortsguard/backend/app/jwt"
	"shortsguard/backend/app/services"
	"shortsguard/backend/app/socket"
	"shortsguard/backend/global"
	"shortsguard/internal/settings"
	"shortsguard/protocol"
)

// ProtocolController fans protocol messages out to the services. It
// implements protocol.Handler: one response per request, settings mutations
// broadcast SETTINGS_CHANGED to every registered agent.
type ProtocolController struct {
	Hub       *socket.Hub
	Settings  *services.SettingsService
	Whitelist *services.WhitelistService
	Stats     *services.StatsService
	Logs      *services.LogService
	Focus     *services.FocusService
	Signer    *jwtutil.Signer
}

func NewProtocolController(h *socket.Hub, st *services.SettingsService, w *services.WhitelistService,
	stats *services.StatsService, logs *services.LogService, focus *services.FocusService,
	signer *jwtutil.Signer) *ProtocolController {
	return &ProtocolController{
		Hub: h, Settings: st, Whitelist: w, Stats: stats, Logs: logs, Focus: focus, Signer: signer,
	}
}

// HandleLogin verifies the presented JWT and registers the connection in the
// hub. Tokens are minted per installation, not per tab; any valid signed
// identity authorizes the connection.
func (c *ProtocolController) HandleLogin(conn *protocol.Conn, p protocol.LoginPayload) (string, protocol.Response) {
	if p.AgentID == "" || p.Token == "" {
		return "", protocol.Failf("agent id and token required")
	}
	if _, err := c.Signer.Verify(p.Token); err != nil {
		global.Logger.Warn().Err(err).Str("agent", p.AgentID).Msg("login refused")
		return "", protocol.Failf("unauthorized")
	}
	c.Hub.Register(p.AgentID, conn)
	global.Logger.Info().Str("agent", p.AgentID).Msg("agent logged in")
	return p.AgentID, protocol.OK(nil)
}

// HandleRequest routes one message. PING is answered for anyone; everything
// else requires a logged-in connection.
func (c *ProtocolController) HandleRequest(conn *protocol.Conn, m protocol.Message) protocol.Response {
	if m.Type == protocol.KindPing {
		return c.handlePing()
	}
	agentID := conn.AgentID()
	if agentID == "" {
		return protocol.Failf("unauthorized")
	}
	switch m.Type {
	case protocol.KindGetSettings:
		return c.handleGetSettings()
	case protocol.KindUpdateSettings:
		return c.handleUpdateSettings(m)
	case protocol.KindWhitelistAdd:
		return c.handleWhitelistAdd(m)
	case protocol.KindWhitelistRemove:
		return c.handleWhitelistRemove(m)
	case protocol.KindLogBlock:
		return c.handleLogBlock(agentID, m)
	case protocol.KindGetLogs:
		return c.handleGetLogs(m)
	case protocol.KindClearLogs:
		return c.handleClearLogs()
	case protocol.KindFocusStart:
		return c.handleFocusStart(services.SessionFocus, m)
	case protocol.KindFocusCancel:
		return c.handleFocusCancel(services.SessionFocus)
	case protocol.KindPomodoroStart:
		return c.handleFocusStart(services.SessionPomodoro, m)
	case protocol.KindPomodoroCancel:
		return c.handleFocusCancel(services.SessionPomodoro)
	default:
		return protocol.Failf("unhandled message kind %q", m.Type)
	}
}

// HandleDisconnect drops the connection from the hub.
func (c *ProtocolController) HandleDisconnect(conn *protocol.Conn) {
	if id := conn.AgentID(); id != "" {
		c.Hub.Unregister(id, conn)
		global.Logger.Debug().Str("agent", id).Msg("agent disconnected")
	}
}

func (c *ProtocolController) handlePing() protocol.Response {
	return protocol.OK(dto.PingResponse{Alive: true, Time: time.Now().UnixMilli()})
}

func (c *ProtocolController) handleGetSettings() protocol.Response {
	snap, err := c.Settings.Snapshot()
	if err != nil {
		return protocol.Fail(err)
	}
	return protocol.OK(snap)
}

func (c *ProtocolController) handleUpdateSettings(m protocol.Message) protocol.Response {
	incoming, err := settings.FromJSON(m.Payload)
	if err != nil {
		// Reject before anything is applied; prior settings stay intact.
		return protocol.Fail(err)
	}
	snap, err := c.Settings.Update(incoming)
	if err != nil {
		return protocol.Fail(err)
	}
	c.broadcastSettings(snap)
	return protocol.OK(snap)
}

func (c *ProtocolController) handleWhitelistAdd(m protocol.Message) protocol.Response {
	var p protocol.WhitelistAddPayload
	if err := m.Decode(&p); err != nil {
		return protocol.Fail(err)
	}
	entry, err := c.Whitelist.Add(p.Platform, p.Type, p.Value)
	if err != nil {
		return protocol.Fail(err)
	}
	c.broadcastCurrent()
	return protocol.OK(entry)
}

func (c *ProtocolController) handleWhitelistRemove(m protocol.Message) protocol.Response {
	var p protocol.WhitelistRemovePayload
	if err := m.Decode(&p); err != nil {
		return protocol.Fail(err)
	}
	if err := c.Whitelist.Remove(p.ID); err != nil {
		return protocol.Fail(err)
	}
	c.broadcastCurrent()
	return protocol.OK(nil)
}

func (c *ProtocolController) handleLogBlock(agentID string, m protocol.Message) protocol.Response {
	var p protocol.LogBlockPayload
	if err := m.Decode(&p); err != nil {
		return protocol.Fail(err)
	}
	if err := c.Stats.ApplyBlock(agentID, p.Platform, p.Action, p.URL); err != nil {
		return protocol.Fail(err)
	}
	return protocol.OK(nil)
}

func (c *ProtocolController) handleGetLogs(m protocol.Message) protocol.Response {
	var p protocol.GetLogsPayload
	if len(m.Payload) > 0 {
		if err := m.Decode(&p); err != nil {
			return protocol.Fail(err)
		}
	}
	events, err := c.Logs.List(p.Limit)
	if err != nil {
		return protocol.Fail(err)
	}
	out := make([]dto.BlockEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, dto.BlockEventResponse{
			ID:        e.ID,
			AgentID:   e.AgentID,
			Platform:  e.Platform,
			Action:    e.Action,
			URL:       e.URL,
			CreatedAt: e.CreatedAt.UnixMilli(),
		})
	}
	return protocol.OK(out)
}

func (c *ProtocolController) handleClearLogs() protocol.Response {
	if err := c.Logs.Clear(); err != nil {
		return protocol.Fail(err)
	}
	return protocol.OK(nil)
}

func (c *ProtocolController) handleFocusStart(kind string, m protocol.Message) protocol.Response {
	var p protocol.FocusStartPayload
	if len(m.Payload) > 0 {
		if err := m.Decode(&p); err != nil {
			return protocol.Fail(err)
		}
	}
	sess, err := c.Focus.Start(kind, p.Minutes)
	if err != nil {
		return protocol.Fail(err)
	}
	status := dto.FocusStatusResponse{Active: true, Kind: sess.Kind}
	if sess.EndsAt != nil {
		status.EndsAt = sess.EndsAt.UnixMilli()
	}
	return protocol.OK(status)
}

func (c *ProtocolController) handleFocusCancel(kind string) protocol.Response {
	if err := c.Focus.Cancel(kind); err != nil {
		return protocol.Fail(err)
	}
	return protocol.OK(nil)
}

// broadcastCurrent pushes the freshly assembled snapshot.
func (c *ProtocolController) broadcastCurrent() {
	snap, err := c.Settings.Snapshot()
	if err != nil {
		global.Logger.Error().Err(err).Msg("snapshot for broadcast failed")
		return
	}
	c.broadcastSettings(snap)
}

// BroadcastSnapshot pushes an externally produced snapshot (settings file
// watcher path).
func (c *ProtocolController) BroadcastSnapshot(snap *settings.Settings) {
	c.broadcastSettings(snap)
}

func (c *ProtocolController) broadcastSettings(snap *settings.Settings) {
	m, err := protocol.NewMessage(protocol.KindSettingsChanged, snap)
	if err != nil {
		global.Logger.Error().Err(err).Msg("encode settings push failed")
		return
	}
	c.Hub.Broadcast(m)
	global.Logger.Debug().Int("agents", len(c.Hub.OnlineAgents())).Msg("settings change broadcast")
}
