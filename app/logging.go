package app

import (
	"github.com/sirupsen/logrus"
)

type LoggingConfig struct {
	Type       string `env:"LOG_TYPE"`
	ServerName string `env:"SERVER_NAME"`
}

func (logConf *LoggingConfig) Setup() {
	if logConf.Type == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if logConf.ServerName != "" {
		logrus.AddHook(&serverNameHook{name: logConf.ServerName})
	}
}

type serverNameHook struct {
	name string
}

func (h *serverNameHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *serverNameHook) Fire(entry *logrus.Entry) error {
	entry.Data["server"] = h.name
	return nil
}
