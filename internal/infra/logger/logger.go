package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Setupはlogrusの出力形式とレベルを決める。prodはJSON。
func Setup(goEnv string, level string) {
	logrus.SetOutput(os.Stdout)

	if goEnv == "prod" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	lv, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("unknown LOG_LEVEL %q, using info", level)
		lv = logrus.InfoLevel
	}
	logrus.SetLevel(lv)
}
