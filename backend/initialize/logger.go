package initialize

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shortsguard/backend/global"
)

func init() {
	cw := zerolog.ConsoleWriter{Out: os.Stdout}
	global.Logger = log.Output(cw)
}
