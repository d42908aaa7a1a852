package log

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Plugin = zapcore.Core

// NewLogger 在默认选项之上追加额外选项创建日志器
func NewLogger(plugin zapcore.Core, options ...zap.Option) *zap.Logger {
	return zap.New(plugin, append(DefaultOption(), options...)...)
}

func NewPlugin(writer zapcore.WriteSyncer, enabler zapcore.LevelEnabler) Plugin {
	return zapcore.NewCore(DefaultEncoder(), writer, enabler)
}

func NewStdoutPlugin(enabler zapcore.LevelEnabler) Plugin {
	return NewPlugin(zapcore.Lock(zapcore.AddSync(os.Stdout)), enabler)
}

func NewStderrPlugin(enabler zapcore.LevelEnabler) Plugin {
	return NewPlugin(zapcore.Lock(zapcore.AddSync(os.Stderr)), enabler)
}

// NewFilePlugin 绑定到轮转文件的日志核心
// lumberjack没有暴露sync方法，额外返回closer，进程退出前必须close以保证内容刷到磁盘
func NewFilePlugin(filePath string, enabler zapcore.LevelEnabler) (Plugin, io.Closer) {
	var writer = DefaultLumberjackLogger()
	writer.Filename = filePath
	return NewPlugin(zapcore.AddSync(writer), enabler), writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

/*
输入日志级别字符串和日志文件路径，输出日志器、closer和error

始终输出到标准输出，filePath非空时同时写入轮转文件
*/
func New(level string, filePath string) (*zap.Logger, io.Closer, error) {
	if level == "" {
		level = "info"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, nil, fmt.Errorf("parse log level %q: %w", level, err)
	}

	cores := []zapcore.Core{NewStdoutPlugin(lvl)}
	var closer io.Closer = nopCloser{}
	if filePath != "" {
		filePlugin, c := NewFilePlugin(filePath, lvl)
		cores = append(cores, filePlugin)
		closer = c
	}

	return NewLogger(zapcore.NewTee(cores...)), closer, nil
}
