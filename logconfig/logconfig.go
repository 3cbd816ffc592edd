// Package logconfig holds the shared logrus presets used by the gateway
// binaries and tests.
package logconfig

import (
	myLogger "github.com/sirupsen/logrus"
)

// terminal-friendly formatter shared by the debug and info presets.
func terminalFormatter() *myLogger.TextFormatter {
	return &myLogger.TextFormatter{
		ForceColors:            true,
		DisableTimestamp:       true,
		DisableLevelTruncation: true,
		PadLevelText:           true,
	}
}

// ConfigDebugLogger is used in tests (has terminal).
func ConfigDebugLogger() {
	myLogger.SetReportCaller(true)
	myLogger.SetLevel(myLogger.DebugLevel)
	myLogger.SetFormatter(terminalFormatter())
}

func ConfigInfoLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
	myLogger.SetFormatter(terminalFormatter())
}

// ConfigProductionLogger is used in production (plain output, info level).
func ConfigProductionLogger() {
	myLogger.SetReportCaller(false)
	myLogger.SetLevel(myLogger.InfoLevel)
}
