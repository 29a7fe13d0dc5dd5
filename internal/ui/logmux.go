package ui

import (
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// label colors cycle per service so backend and frontend output stay
// tellable apart at a glance.
var labelColors = []lipgloss.Color{"212", "84", "220", "111"}

// LabelWriter prefixes every complete line written through it with a colored
// service tag. Bytes are passed through as soon as a newline completes the
// line, so child output stays real-time; partial lines are held until
// finished or flushed.
type LabelWriter struct {
	mu     sync.Mutex
	out    io.Writer
	prefix string
	buffer []byte
	mirror func(string)
}

// NewLabelWriter wraps out with a "[label]" prefix. index selects the label
// color.
func NewLabelWriter(out io.Writer, label string, index int) *LabelWriter {
	style := lipgloss.NewStyle().Foreground(labelColors[index%len(labelColors)])
	return &LabelWriter{
		out:    out,
		prefix: style.Render("["+label+"]") + " ",
	}
}

// Mirror additionally sends each completed line (without the styled prefix
// or trailing newline) to fn. The dashboard uses this to fill its log tail.
func (lw *LabelWriter) Mirror(fn func(string)) *LabelWriter {
	lw.mirror = fn
	return lw
}

// Write implements io.Writer.
func (lw *LabelWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()

	lw.buffer = append(lw.buffer, p...)
	for {
		idx := -1
		for i, b := range lw.buffer {
			if b == '\n' {
				idx = i
				break
			}
		}
		if idx < 0 {
			break
		}
		line := string(lw.buffer[:idx])
		lw.buffer = lw.buffer[idx+1:]
		lw.writeLine(line)
	}
	return len(p), nil
}

// Flush emits any incomplete trailing line.
func (lw *LabelWriter) Flush() {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	if len(lw.buffer) > 0 {
		lw.writeLine(string(lw.buffer))
		lw.buffer = lw.buffer[:0]
	}
}

func (lw *LabelWriter) writeLine(line string) {
	if lw.out != nil {
		lw.out.Write([]byte(lw.prefix + line + "\n"))
	}
	if lw.mirror != nil {
		lw.mirror(line)
	}
}

// LogBuffer is a bounded ring of log lines backing the dashboard tail.
type LogBuffer struct {
	mu       sync.RWMutex
	lines    []string
	maxLines int
}

func NewLogBuffer(maxLines int) *LogBuffer {
	return &LogBuffer{
		lines:    make([]string, 0, maxLines),
		maxLines: maxLines,
	}
}

func (lb *LogBuffer) Append(line string) {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	if len(lb.lines) >= lb.maxLines {
		copy(lb.lines, lb.lines[1:])
		lb.lines = lb.lines[:len(lb.lines)-1]
	}
	lb.lines = append(lb.lines, line)
}

func (lb *LogBuffer) Last(n int) []string {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	if n >= len(lb.lines) {
		n = len(lb.lines)
	}
	result := make([]string, n)
	copy(result, lb.lines[len(lb.lines)-n:])
	return result
}

func (lb *LogBuffer) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return len(lb.lines)
}
