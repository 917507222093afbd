/*
   Copyright 2018-2019 Banco Bilbao Vizcaya Argentaria, S.A.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

// Package log implements the imtree/log wrapper that formats the logs in our
// custom format as well as logging levels.
package log

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
)

// Log levels constants
const (
	SILENT = "silent"
	ERROR  = "error"
	INFO   = "info"
	DEBUG  = "debug"

	calldepth = 3
	flags     = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile | log.LUTC
)

var (
	mu  sync.RWMutex
	out io.Writer = os.Stdout

	// The default logger is an log.ERROR level.
	std = newLeveled(ERROR, out, "imtree: ")
)

// To allow mocking we require a switchable variable.
var osExit = os.Exit

func current() *leveled {
	mu.RLock()
	defer mu.RUnlock()
	return std
}

// Error writes an error message. Execution goes on.
func Error(v ...interface{}) {
	current().output(ERROR, fmt.Sprint(v...))
}

// Errorf writes a formatted error message. Execution goes on.
func Errorf(format string, v ...interface{}) {
	current().output(ERROR, fmt.Sprintf(format, v...))
}

// Fatal writes an error message and stops the process.
func Fatal(v ...interface{}) {
	current().output(fatal, fmt.Sprint(v...))
	osExit(1)
}

// Fatalf writes a formatted error message and stops the process.
func Fatalf(format string, v ...interface{}) {
	current().output(fatal, fmt.Sprintf(format, v...))
	osExit(1)
}

// Info writes information relative to the usage of the imtree packages.
func Info(v ...interface{}) {
	current().output(INFO, fmt.Sprint(v...))
}

// Infof writes formatted information relative to the usage of the imtree
// packages.
func Infof(format string, v ...interface{}) {
	current().output(INFO, fmt.Sprintf(format, v...))
}

// Debug writes internal debug information.
func Debug(v ...interface{}) {
	current().output(DEBUG, fmt.Sprint(v...))
}

// Debugf writes formatted internal debug information.
func Debugf(format string, v ...interface{}) {
	current().output(DEBUG, fmt.Sprintf(format, v...))
}

// GetLogger returns the underlying log.Logger. Useful to let third party
// modules (raft, http servers) use the same output and formatting options.
func GetLogger() *log.Logger {
	return current().Logger
}

// GetLoggerLevel returns the string representation of the current level.
func GetLoggerLevel() string {
	return current().level
}

// SetOutput redirects every log line to the given writer.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	std = newLeveled(std.level, out, std.Prefix())
}

// SetLogger is a function that switches between verbosity loggers. Default
// is error level. Available levels are "silent", "debug", "info" and "error".
func SetLogger(namespace, lv string) {
	prefix := fmt.Sprintf("%s ", namespace)

	mu.Lock()
	defer mu.Unlock()

	switch lv {
	case SILENT, ERROR, INFO, DEBUG:
		std = newLeveled(lv, out, prefix)
	default:
		std = newLeveled(INFO, out, prefix)
		std.output(INFO, fmt.Sprintf("Incorrect level of verbosity (%v) fallback to log.INFO", lv))
	}
}
