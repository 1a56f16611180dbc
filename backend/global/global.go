package global

import (
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"shortsguard/backend/config"
)

var (
	Config *config.Config
	Logger zerolog.Logger
	Mdb    *gorm.DB
)
