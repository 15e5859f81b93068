package ledger

import (
	"github.com/rentledger/syncer/src/utils/logger"

	"github.com/sirupsen/logrus"
)

// Resty logger, everything goes to debug
type restyLogger struct {
	log *logrus.Entry
}

func newRestyLogger() *restyLogger {
	return &restyLogger{log: logger.NewSublogger("ledger-resty")}
}

func (self *restyLogger) Errorf(format string, v ...interface{}) {
	self.log.Debugf(format, v...)
}

func (self *restyLogger) Warnf(format string, v ...interface{}) {
	self.log.Debugf(format, v...)
}

func (self *restyLogger) Debugf(format string, v ...interface{}) {
	self.log.Tracef(format, v...)
}
