package progress

import (
	"fmt"
	"time"

	"github.com/fatih/color"
)

func buildMessage(info TaskInfo) string {
	msg := info.Label + "..."
	if info.Attempt > 0 {
		msg += fmt.Sprintf(" (correction %d/%d)", info.Attempt, info.MaxAttempts)
	}
	return msg
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}

func paint(mark string, attr color.Attribute, enabled bool) string {
	if !enabled {
		return mark
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(mark)
}
