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

package log

import (
	"io"
	"io/ioutil"
	"log"
	"strings"

	"github.com/hashicorp/logutils"
)

const fatal = "fatal"

var levelTags = map[string]logutils.LogLevel{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	ERROR: "ERROR",
	fatal: "FATAL",
}

// leveled tags every line with its level and lets a logutils filter drop
// the ones below the configured threshold.
type leveled struct {
	*log.Logger
	level string
}

func newLeveled(level string, out io.Writer, prefix string) *leveled {
	var w io.Writer
	if level == SILENT {
		w = ioutil.Discard
	} else {
		w = &logutils.LevelFilter{
			Levels:   []logutils.LogLevel{"DEBUG", "INFO", "ERROR", "FATAL"},
			MinLevel: levelTags[level],
			Writer:   out,
		}
	}
	return &leveled{
		Logger: log.New(w, prefix, flags),
		level:  level,
	}
}

func (l *leveled) output(level, msg string) {
	if l.level == SILENT {
		return
	}
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(levelTags[level]))
	b.WriteString("] ")
	b.WriteString(msg)
	_ = l.Output(calldepth, b.String())
}
