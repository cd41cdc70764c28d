package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	applogger "bookingtms/pkg/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SlowQueryThreshold marks queries worth a warning even when SQL tracing is off
const SlowQueryThreshold = 200 * time.Millisecond

// queryLogger routes gorm output through the application logger
type queryLogger struct {
	log   *applogger.Logger
	level logger.LogLevel
	slow  time.Duration
}

func newQueryLogger(l *applogger.Logger, level logger.LogLevel) *queryLogger {
	return &queryLogger{log: l, level: level, slow: SlowQueryThreshold}
}

func (q *queryLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *q
	clone.level = level
	return &clone
}

func (q *queryLogger) Info(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Info {
		q.log.InfoContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Warn(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Warn {
		q.log.WarnContext(ctx, fmt.Sprintf(msg, args...))
	}
}

func (q *queryLogger) Error(ctx context.Context, msg string, args ...interface{}) {
	if q.level >= logger.Error {
		q.log.ErrorContext(ctx, fmt.Sprintf(msg, args...))
	}
}

// Trace reports failed and slow statements at any level above Silent; the rest only at Info
func (q *queryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if q.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, _ := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		q.log.LogDBQuery(ctx, sql, elapsed, err)
	case elapsed > q.slow:
		q.log.LogSlowQuery(ctx, sql, elapsed)
	case q.level >= logger.Info:
		q.log.LogDBQuery(ctx, sql, elapsed, nil)
	}
}
