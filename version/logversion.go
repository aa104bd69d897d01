package version

import (
	"github.com/nb-coin/new-bitcoin/pkg/log"
)

var F, E, W, I, D, T log.LevelPrinter

func init() {
	F, E, W, I, D, T = log.GetLogPrinterSet(log.AddLoggerSubsystem(PathBase))
}
