package state

import "sync/atomic"

type agentState struct {
	Token   atomic.Value // string
	AgentID atomic.Value // string
}

var s agentState

func SetToken(t string) { s.Token.Store(t) }
func GetToken() string {
	if v := s.Token.Load(); v != nil {
		if t, ok := v.(string); ok {
			return t
		}
	}
	return ""
}

func SetAgentID(id string) { s.AgentID.Store(id) }
func GetAgentID() string {
	if v := s.AgentID.Load(); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
