// Package bridge is the agent side of the messaging protocol: request/response
// round trips to the settings authority plus the settings push subscription.
// The bridge performs no retries itself; callers decide.
package bridge

import (
	"fmt"
	"sync"

	"shortsguard/agent/internal/logger"
	"shortsguard/internal/settings"
	"shortsguard/protocol"
)

// Bridge wraps one authorized protocol connection.
type Bridge struct {
	client *protocol.Client

	mu         sync.Mutex
	onSettings func(*settings.Settings)
	onFocus    func(active bool)
}

// Connect dials the authority, logs in and subscribes to pushes.
func Connect(addr, agentID, token string) (*Bridge, error) {
	b := &Bridge{}
	client, err := protocol.Dial(addr, b.handlePush)
	if err != nil {
		return nil, err
	}
	if err := client.Login(agentID, token); err != nil {
		client.Close()
		return nil, err
	}
	b.client = client
	return b, nil
}

// OnSettingsChanged registers the callback invoked with every pushed
// snapshot. The snapshot replaces the previous one wholesale.
func (b *Bridge) OnSettingsChanged(fn func(*settings.Settings)) {
	b.mu.Lock()
	b.onSettings = fn
	b.mu.Unlock()
}

func (b *Bridge) handlePush(m protocol.Message) {
	if m.Type != protocol.KindSettingsChanged {
		return
	}
	snap, err := settings.FromJSON(m.Payload)
	if err != nil {
		// Malformed push: keep the previously cached snapshot.
		logger.Warnf("ignoring malformed settings push: %v", err)
		return
	}
	b.mu.Lock()
	fn := b.onSettings
	b.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// FetchSettings pulls the current snapshot from the authority.
func (b *Bridge) FetchSettings() (*settings.Settings, error) {
	m, err := protocol.NewMessage(protocol.KindGetSettings, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Request(m)
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("get settings: %s", resp.Error)
	}
	return settings.FromJSON(resp.Data)
}

// LogBlock reports one blocked element, fire-and-observe: a failed send or a
// failure response is logged and dropped. Implements scan.BlockSink.
func (b *Bridge) LogBlock(platform settings.Platform, action, url string) {
	m, err := protocol.NewMessage(protocol.KindLogBlock, protocol.LogBlockPayload{
		Platform: platform,
		Action:   action,
		URL:      url,
	})
	if err != nil {
		return
	}
	resp, err := b.client.Request(m)
	if err != nil {
		logger.Warnf("log block not delivered: %v", err)
		return
	}
	if !resp.Success {
		logger.Warnf("log block rejected: %s", resp.Error)
	}
}

// AddWhitelist creates an exemption and returns the stored entry.
func (b *Bridge) AddWhitelist(platform settings.Platform, typ settings.WhitelistType, value string) (*settings.WhitelistEntry, error) {
	m, err := protocol.NewMessage(protocol.KindWhitelistAdd, protocol.WhitelistAddPayload{
		Platform: platform,
		Type:     typ,
		Value:    value,
	})
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Request(m)
	if err != nil {
		return nil, err
	}
	var entry settings.WhitelistEntry
	if err := resp.Decode(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// RemoveWhitelist removes an exemption by id.
func (b *Bridge) RemoveWhitelist(id string) error {
	m, err := protocol.NewMessage(protocol.KindWhitelistRemove, protocol.WhitelistRemovePayload{ID: id})
	if err != nil {
		return err
	}
	resp, err := b.client.Request(m)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("whitelist remove: %s", resp.Error)
	}
	return nil
}

// Ping is the liveness probe.
func (b *Bridge) Ping() error {
	m, err := protocol.NewMessage(protocol.KindPing, nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Request(m)
	if err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("ping: %s", resp.Error)
	}
	return nil
}

// Close tears down the connection.
func (b *Bridge) Close() {
	if b.client != nil {
		b.client.Close()
	}
}
