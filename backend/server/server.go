package server

import (
	"shortsguard/backend/app/controllers"
	"shortsguard/backend/global"
	"shortsguard/protocol"
)

// StartProtocolServer starts the framed TCP server the agents connect to.
func StartProtocolServer(addr string, ctrl *controllers.ProtocolController) (*protocol.Server, error) {
	srv, err := protocol.Listen(addr, ctrl, global.Logger)
	if err != nil {
		return nil, err
	}
	global.Logger.Info().Msgf("protocol server is listening on %s...", srv.Addr())
	return srv, nil
}
