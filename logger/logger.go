package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/praisemwanza53/genset-monitoring/config"
)

var (
	// Global logger instances
	InfoLogger   *log.Logger
	ErrorLogger  *log.Logger
	DebugLogger  *log.Logger
	WarnLogger   *log.Logger
	logFile      *os.File
	logWriter    io.Writer = os.Stdout
	logLevel     string    = INFO
	logToConsole bool
)

// LogLevel constants
const (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
)

// Init initializes the logging system using configuration
func Init(cfg *config.Config) error {
	logToConsole = cfg.Logging.LogToConsole
	logLevel = strings.ToLower(cfg.Logging.LogLevel)

	logPath := cfg.Logging.LogFile
	if !filepath.IsAbs(logPath) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current working directory: %w", err)
		}
		logPath = filepath.Join(cwd, logPath)
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	var err error
	logFile, err = os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	var infoWriter, errorWriter io.Writer
	if logToConsole {
		infoWriter = io.MultiWriter(os.Stdout, logFile)
		errorWriter = io.MultiWriter(os.Stderr, logFile)
	} else {
		infoWriter = logFile
		errorWriter = logFile
	}
	logWriter = infoWriter

	flags := log.Ldate | log.Ltime
	InfoLogger = log.New(infoWriter, "", flags)
	ErrorLogger = log.New(errorWriter, "", flags)
	DebugLogger = log.New(infoWriter, "", flags)
	WarnLogger = log.New(infoWriter, "", flags)

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	InfoLogger.Printf("=== Session started at %s ===\n", timestamp)
	InfoLogger.Printf("Log file: %s\n", logPath)
	InfoLogger.Printf("Log level: %s\n", logLevel)
	LogDivider()

	return nil
}

// Close closes the log file
func Close() error {
	if logFile != nil {
		timestamp := time.Now().Format("2006-01-02 15:04:05")
		LogDivider()
		InfoLogger.Printf("=== Session ended at %s ===\n\n", timestamp)
		err := logFile.Close()
		logFile = nil
		return err
	}
	return nil
}

// Writer returns the destination of info-level output, used for HTTP access logs
func Writer() io.Writer {
	return logWriter
}

// Level returns the configured log level
func Level() string {
	return logLevel
}

// shouldLog determines if a message should be logged based on log level
func shouldLog(messageLevel string) bool {
	levels := map[string]int{
		DEBUG: 0,
		INFO:  1,
		WARN:  2,
		ERROR: 3,
	}

	currentLevel, exists := levels[logLevel]
	if !exists {
		currentLevel = levels[INFO]
	}

	messageLogLevel, exists := levels[messageLevel]
	if !exists {
		return true
	}

	return messageLogLevel >= currentLevel
}

// Printf prints formatted text to log (respects log level)
func Printf(format string, v ...interface{}) {
	if !shouldLog(INFO) {
		return
	}
	if InfoLogger != nil {
		InfoLogger.Printf(format, v...)
	} else {
		fmt.Printf(format, v...)
	}
}

// Println prints a line to log (respects log level)
func Println(v ...interface{}) {
	if !shouldLog(INFO) {
		return
	}
	if InfoLogger != nil {
		InfoLogger.Println(v...)
	} else {
		fmt.Println(v...)
	}
}

// Debugf prints formatted debug text
func Debugf(format string, v ...interface{}) {
	if !shouldLog(DEBUG) {
		return
	}
	if DebugLogger != nil {
		DebugLogger.Printf("DEBUG: "+format, v...)
	} else {
		fmt.Printf("DEBUG: "+format, v...)
	}
}

// Warnf prints formatted warning text
func Warnf(format string, v ...interface{}) {
	if !shouldLog(WARN) {
		return
	}
	if WarnLogger != nil {
		WarnLogger.Printf("WARN: "+format, v...)
	} else {
		fmt.Printf("WARN: "+format, v...)
	}
}

// Errorf prints formatted error text (always logged regardless of level)
func Errorf(format string, v ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Printf("ERROR: "+format, v...)
	} else {
		fmt.Fprintf(os.Stderr, "ERROR: "+format, v...)
	}
}

// Errorln prints error line (always logged regardless of level)
func Errorln(v ...interface{}) {
	msg := fmt.Sprintln(v...)
	if ErrorLogger != nil {
		ErrorLogger.Print("ERROR: " + msg)
	} else {
		fmt.Fprint(os.Stderr, "ERROR: "+msg)
	}
}

// Fatalf prints formatted fatal error and exits (always logged)
func Fatalf(format string, v ...interface{}) {
	if ErrorLogger != nil {
		ErrorLogger.Printf("FATAL: "+format, v...)
	} else {
		fmt.Fprintf(os.Stderr, "FATAL: "+format, v...)
	}
	Close()
	os.Exit(1)
}

// LogCommand logs the command being executed
func LogCommand(command string, args []string) {
	if len(args) > 1 {
		Printf("Command executed: %s %v\n", command, args[1:])
		return
	}
	Printf("Command executed: %s\n", command)
}

// LogDivider prints a divider line for better log organization
func LogDivider() {
	Println("------------------------------------------------------------")
}

// LogResult logs a result with status
func LogResult(operation string, success bool, details string) {
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	if details != "" {
		Printf("%s: %s - %s\n", operation, status, details)
		return
	}
	Printf("%s: %s\n", operation, status)
}
