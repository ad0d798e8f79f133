package common

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the process-wide leveled logger. Storage layers report I/O and
// corruption problems through it; nothing logs on the hot path below Warn.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(os.Stderr)
	Logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: false, FullTimestamp: true})
	Logger.SetLevel(logrus.WarnLevel)
}

func SetLogLevel(level logrus.Level) {
	Logger.SetLevel(level)
}
