// Package logflags configures the debug loggers of the debugger layers from
// the --log and --log-output flags.
package logflags

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

var target = false
var session = false

var logOut io.Writer = os.Stderr

func makeLogger(flag bool, fields logrus.Fields) *logrus.Entry {
	logger := logrus.New().WithFields(fields)
	logger.Logger.Out = logOut
	logger.Logger.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	logger.Logger.Level = logrus.DebugLevel
	if !flag {
		logger.Logger.Level = logrus.PanicLevel
	}
	return logger
}

// Target returns true if the tracing layer (ptrace requests, wait results,
// breakpoints) should log.
func Target() bool {
	return target
}

// TargetLogger returns a logger for the target package.
func TargetLogger() *logrus.Entry {
	return makeLogger(target, logrus.Fields{"layer": "target"})
}

// Session returns true if the command loop should log.
func Session() bool {
	return session
}

// SessionLogger returns a logger for the debug session.
func SessionLogger() *logrus.Entry {
	return makeLogger(session, logrus.Fields{"layer": "session"})
}

var errLogstrWithoutLog = errors.New("--log-output specified without --log")

// Setup sets debugger flags based on the contents of logstr. Log lines go to
// out, standard error when nil.
func Setup(logFlag bool, logstr string, out io.Writer) error {
	target, session = false, false
	logOut = os.Stderr
	if out != nil {
		logOut = out
	}

	if !logFlag {
		if logstr != "" {
			return errLogstrWithoutLog
		}
		return nil
	}
	if logstr == "" {
		logstr = "target"
	}
	for _, logcmd := range strings.Split(logstr, ",") {
		switch strings.TrimSpace(logcmd) {
		case "target":
			target = true
		case "session":
			session = true
		case "all":
			target, session = true, true
		default:
			return errors.New("unknown --log-output layer: " + logcmd)
		}
	}
	return nil
}
