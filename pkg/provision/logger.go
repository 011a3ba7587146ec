package provision

import "github.com/sirupsen/logrus"

var logSink logrus.FieldLogger = logrus.StandardLogger()

// SetLogger replaces the package default logger used when a Workflow has
// none. Passing nil resets to the logrus standard logger.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		logSink = logrus.StandardLogger()
		return
	}
	logSink = l
}
