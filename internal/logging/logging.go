package logging

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, program string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", program, sessionStart.Format("20060102_150405")),
	)
}

// TickContext returns a ContextProvider that tags every record with the
// current match name and tick.
func TickContext(matchName func() string, tick func() uint64) ContextProvider {
	return func() []slog.Attr {
		return []slog.Attr{
			slog.String("match", matchName()),
			slog.Uint64("tick", tick()),
		}
	}
}
