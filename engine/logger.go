package engine

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	debugPrefix = color.New(color.FgCyan).Sprint("[DEBUG]")
	infoPrefix  = color.New(color.FgGreen).Sprint("[INFO]")
	warnPrefix  = color.New(color.FgYellow).Sprint("[WARN]")
	errorPrefix = color.New(color.FgRed).Sprint("[ERROR]")
)

// LoggerService provides leveled logging for the engine and adapters
type LoggerService struct {
	Verbose     bool   // Info messages print to stdout only when set
	DebugMode   bool   // Debug messages print to stdout only when set
	LogFile     string // Path to the log file, empty disables file logging
	initialized bool
	fileLogger  *log.Logger
	mutex       sync.Mutex
}

func (l *LoggerService) initLogger() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	if l.initialized {
		return nil
	}

	if l.LogFile != "" {
		logDir := filepath.Dir(l.LogFile)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err := os.OpenFile(l.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}

		l.fileLogger = log.New(file, "", log.LstdFlags|log.Lmicroseconds)
	}

	l.initialized = true
	return nil
}

func (l *LoggerService) logToFile(level, format string, args ...interface{}) {
	if !l.initialized {
		if err := l.initLogger(); err != nil {
			fmt.Printf("Logger initialization error: %v\n", err)
			return
		}
	}

	if l.fileLogger != nil {
		timestamp := time.Now().Format("2006-01-02 15:04:05.000")
		pid := os.Getpid()
		message := fmt.Sprintf(format, args...)
		l.fileLogger.Printf("%s [%d] %s - %s", timestamp, pid, level, message)
	}
}

// Debug logs debug-level messages
func (l *LoggerService) Debug(format string, args ...interface{}) {
	if l.DebugMode {
		fmt.Printf("%s "+format+"\n", append([]interface{}{debugPrefix}, args...)...)
	}
	l.logToFile("DEBUG", format, args...)
}

// Info logs informational messages
func (l *LoggerService) Info(format string, args ...interface{}) {
	if l.Verbose {
		fmt.Printf("%s "+format+"\n", append([]interface{}{infoPrefix}, args...)...)
	}
	l.logToFile("INFO", format, args...)
}

// Warn logs warning messages
func (l *LoggerService) Warn(format string, args ...interface{}) {
	fmt.Printf("%s "+format+"\n", append([]interface{}{warnPrefix}, args...)...)
	l.logToFile("WARN", format, args...)
}

// Error logs error messages
func (l *LoggerService) Error(format string, args ...interface{}) {
	fmt.Printf("%s "+format+"\n", append([]interface{}{errorPrefix}, args...)...)
	l.logToFile("ERROR", format, args...)
}
