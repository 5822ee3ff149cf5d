// Copyright 2021-2022, Offchain Labs, Inc.
// For license information, see https://github.com/nitro/blob/master/LICENSE

package genericconf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

var globalFileLoggerFactory = fileLoggerFactory{}

type fileLoggerFactory struct {
	// writerMutex is to avoid parallel writes to the file-logger
	writerMutex sync.Mutex
	writer      *lumberjack.Logger

	cancel context.CancelFunc

	// writeStartPing and writeDonePing bound the number of records in flight
	// to config.BufSize; records beyond that are dropped.
	writeStartPing chan struct{}
	writeDonePing  chan struct{}
}

func (l *fileLoggerFactory) Write(p []byte) (n int, err error) {
	select {
	case l.writeStartPing <- struct{}{}:
		l.writerMutex.Lock()
		_, _ = l.writer.Write(p)
		l.writerMutex.Unlock()
		l.writeDonePing <- struct{}{}
	default:
	}
	return len(p), nil
}

// newFileWriter is not threadsafe
func (l *fileLoggerFactory) newFileWriter(config *FileLoggingConfig, filename string) io.Writer {
	_ = l.close()
	l.writer = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    config.MaxSize,
		MaxBackups: config.MaxBackups,
		MaxAge:     config.MaxAge,
		LocalTime:  config.LocalTime,
		Compress:   config.Compress,
	}
	l.writeStartPing = make(chan struct{}, config.BufSize)
	l.writeDonePing = make(chan struct{}, config.BufSize)
	writeStartPing := l.writeStartPing
	writeDonePing := l.writeDonePing
	var consumerCtx context.Context
	consumerCtx, l.cancel = context.WithCancel(context.Background())
	go func() {
		for {
			select {
			case <-writeStartPing:
				<-writeDonePing
			case <-consumerCtx.Done():
				return
			}
		}
	}()
	return l
}

// close is not threadsafe
func (l *fileLoggerFactory) close() error {
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.writer != nil {
		if err := l.writer.Close(); err != nil {
			return err
		}
		l.writer = nil
	}
	return nil
}

// HandlerFromLogType returns a slog handler writing plaintext or json records.
func HandlerFromLogType(logType string, output io.Writer) (slog.Handler, error) {
	switch logType {
	case "plaintext":
		return log.NewTerminalHandler(output, false), nil
	case "json":
		return log.JSONHandler(output), nil
	}
	return nil, fmt.Errorf("invalid log type: %q", logType)
}

// ToSlogLevel accepts level names as well as the legacy numeric levels (1=error .. 5=trace).
func ToSlogLevel(str string) (slog.Level, error) {
	switch strings.ToLower(str) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	}
	legacy, err := strconv.Atoi(str)
	if err != nil || legacy < 0 || legacy > 5 {
		return log.LevelInfo, errors.New("invalid log level")
	}
	return log.FromLegacyLevel(legacy), nil
}

// InitLog is not threadsafe
func InitLog(logType string, logLevel string, fileLoggingConfig *FileLoggingConfig, pathResolver func(string) string) error {
	// always close previous instance of file logger
	if err := globalFileLoggerFactory.close(); err != nil {
		return fmt.Errorf("failed to close file writer: %w", err)
	}
	var output io.Writer = os.Stderr
	if fileLoggingConfig.Enable {
		output = io.MultiWriter(
			os.Stderr,
			globalFileLoggerFactory.newFileWriter(fileLoggingConfig, pathResolver(fileLoggingConfig.File)),
		)
	}
	handler, err := HandlerFromLogType(logType, output)
	if err != nil {
		return fmt.Errorf("error parsing log type when creating handler: %w", err)
	}
	slogLevel, err := ToSlogLevel(logLevel)
	if err != nil {
		return fmt.Errorf("error parsing log level: %w", err)
	}
	glogger := log.NewGlogHandler(handler)
	glogger.Verbosity(slogLevel)
	log.SetDefault(log.NewLogger(glogger))
	return nil
}
