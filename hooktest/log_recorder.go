package hooktest

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cmstar/go-logx"
)

// LogEntry 是 [LogRecorder] 记录的一条日志。
type LogEntry struct {
	Level     logx.Level
	Message   string
	KeyValues []any
}

// Get 获取日志中指定 key 对应的值，并格式化为字符串。 key 不存在时返回 ok=false 。
func (e LogEntry) Get(key string) (value string, ok bool) {
	for i := 0; i < len(e.KeyValues)-1; i += 2 {
		if fmt.Sprintf("%v", e.KeyValues[i]) == key {
			return fmt.Sprintf("%v", e.KeyValues[i+1]), true
		}
	}
	return "", false
}

// String 返回日志的文本形式，格式为：
//
//	level={LEVEL} message={MESSAGE} KEY1=VALUE1 KEY2=VALUE2 ...
//
// key-value 不成对时，最后一个值使用 UNKNOWN 作为 key 。
func (e LogEntry) String() string {
	b := new(strings.Builder)
	b.WriteString("level=")
	b.WriteString(logx.LevelToString(e.Level))
	b.WriteString(" message=")
	b.WriteString(e.Message)

	length := len(e.KeyValues)
	for i := 0; i < length-1; i += 2 {
		fmt.Fprintf(b, " %v=%v", e.KeyValues[i], e.KeyValues[i+1])
	}

	if length%2 != 0 {
		fmt.Fprintf(b, " UNKNOWN=%v", e.KeyValues[length-1])
	}

	return b.String()
}

// LogRecorder 实现 logx.Logger ，在内存中记录全部日志，用于在测试中断言日志内容。可被并发使用。
type LogRecorder struct {
	mu      sync.Mutex
	entries []LogEntry
}

var _ logx.Logger = (*LogRecorder)(nil)

// NewLogRecorder 创建一个 LogRecorder 的新实例。
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Log 实现 Logger.Log() 。
func (l *LogRecorder) Log(level logx.Level, message string, keyValues ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, LogEntry{
		Level:     level,
		Message:   message,
		KeyValues: keyValues,
	})
	return nil
}

// LogFn 实现 Logger.LogFn() 。
func (l *LogRecorder) LogFn(level logx.Level, messageFactory func() (string, []interface{})) error {
	m, kv := messageFactory()
	return l.Log(level, m, kv...)
}

// Entries 返回已记录的日志的副本。
func (l *LogRecorder) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

// Find 返回第一条指定级别的日志。
func (l *LogRecorder) Find(level logx.Level) (LogEntry, bool) {
	for _, e := range l.Entries() {
		if e.Level == level {
			return e, true
		}
	}
	return LogEntry{}, false
}

// String 返回当前记录的完整日志，每条日志一行。
func (l *LogRecorder) String() string {
	b := new(strings.Builder)
	for _, e := range l.Entries() {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
