package nat

import (
	"github.com/nb-coin/new-bitcoin/pkg/log"
	"github.com/nb-coin/new-bitcoin/version"
)

var subsystem = log.AddLoggerSubsystem(version.PathBase)
var F, E, W, I, D, T log.LevelPrinter = log.GetLogPrinterSet(subsystem)
