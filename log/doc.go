// Package log provides the leveled logging interface used across agentgraph.
//
// The default implementation wraps github.com/kataras/golog. Messages are
// printf-style:
//
//	logger := log.NewDefaultLogger(log.LogLevelDebug)
//	logger.Info("thread %s interrupted before %s", threadID, node)
//
// An existing golog logger can be wrapped directly:
//
//	glogger := golog.New()
//	glogger.SetPrefix("[MyApp] ")
//	logger := log.NewGologLogger(glogger)
//	logger.SetLevel(log.LogLevelDebug)
//
// Levels can be read from configuration with ParseLevel. NoOpLogger discards
// everything and is convenient in tests.
//
// The package-level functions (Debug, Info, Warn, Error) forward to a default
// logger that SetDefaultLogger and SetLogLevel replace.
package log
