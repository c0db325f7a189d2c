package config

import (
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

const (
	colorRed         = 31
	colorYellow      = 33
	colorBlue        = 36
	colorGray        = 37
	colorGreen       = 32
	colorCyan        = 96
	colorLightYellow = 93
	colorLightGreen  = 92
)

// NbFormatter renders entries as colored key=value pairs with sorted fields.
type NbFormatter struct {
	// CallerDepth enables the source=file:line pair when positive.
	CallerDepth int
	NoColors    bool
}

func (f *NbFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b strings.Builder

	levelColor := colorBlue
	switch entry.Level {
	case log.DebugLevel, log.TraceLevel:
		levelColor = colorGray
	case log.WarnLevel:
		levelColor = colorYellow
	case log.ErrorLevel, log.FatalLevel, log.PanicLevel:
		levelColor = colorRed
	}
	level := strings.ToUpper(entry.Level.String())
	if len(level) > 4 {
		level = level[:4]
	}

	f.pair(&b, "level", f.paint(levelColor, level))
	f.pair(&b, "ts", f.paint(colorLightYellow, entry.Time.Format("2006-01-02 15:04:05.000")))

	if f.CallerDepth > 0 {
		if _, file, line, ok := runtime.Caller(f.CallerDepth); ok {
			f.pair(&b, "source", f.paint(colorLightYellow, fmt.Sprintf("%s:%d", file, line)))
		}
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		val := entry.Data[k]
		if err, ok := val.(error); ok {
			val = err.Error()
		}
		m, err := json.Marshal(val)
		if err != nil || len(m) == 0 {
			continue
		}
		s := string(m)
		valueColor := colorCyan
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			valueColor = colorGreen
		} else if strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"") {
			valueColor = colorLightYellow
		}
		f.pair(&b, k, f.paint(valueColor, s))
	}
	f.pair(&b, "msg", f.paint(colorLightGreen, strconv.Quote(entry.Message)))

	output := strings.ReplaceAll(b.String(), "\r", "\\r")
	output = strings.ReplaceAll(output, "\n", "\\n") + "\n"
	return []byte(output), nil
}

func (f *NbFormatter) pair(b *strings.Builder, key, value string) {
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	b.WriteString(f.paint(colorCyan, key))
	b.WriteByte('=')
	b.WriteString(value)
}

func (f *NbFormatter) paint(color int, s string) string {
	if f.NoColors {
		return s
	}
	return fmt.Sprintf("\x1b[%dm%s\x1b[0m", color, s)
}
