package logsvc

import (
	"context"
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/tutorconnect/core"
	"github.com/trezcool/tutorconnect/core/user"
)

// RollbarLogger reports to rollbar and writes every entry to zap.
type RollbarLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && conf.RollbarToken != "")
	return &RollbarLogger{zl: zl.WithOptions(zap.AddCallerSkip(1))}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// entry is a log call split for rollbar and zap.
type entry struct {
	rollbarArgs []interface{}
	fields      []zap.Field
}

// prepare accepts, in any order: error, user.User, map[string]interface{} and key/value pairs.
// The user is attached to the rollbar item through its context; the client's person stays unset.
func (l RollbarLogger) prepare(msg string, args []interface{}) entry {
	var (
		person *rollbar.Person
		extras = make(map[string]interface{})
		e      = entry{rollbarArgs: []interface{}{msg}}
	)

	for i := 0; i < len(args); i++ {
		switch arg := args[i].(type) {
		case user.User:
			// only set one User
			if person == nil {
				person = &rollbar.Person{Id: fmt.Sprint(arg.ID), Username: arg.FullName, Email: arg.Email}
				e.fields = append(e.fields, zap.Int("user_id", arg.ID))
			}
		case error:
			e.rollbarArgs = append(e.rollbarArgs, arg)
			e.fields = append(e.fields, zap.Error(arg))
		case map[string]interface{}:
			for k, v := range arg {
				extras[k] = v
				e.fields = append(e.fields, zap.Any(k, v))
			}
		case string:
			if i+1 < len(args) {
				extras[arg] = args[i+1]
				e.fields = append(e.fields, zap.Any(arg, args[i+1]))
				i++
			}
		default:
			e.fields = append(e.fields, zap.Any(fmt.Sprintf("arg%d", i), arg))
		}
	}
	if person != nil {
		e.rollbarArgs = append(e.rollbarArgs, rollbar.NewPersonContext(context.Background(), person))
	}
	if len(extras) > 0 {
		e.rollbarArgs = append(e.rollbarArgs, extras)
	}
	return e
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Debug(e.rollbarArgs...)
	l.zl.Debug(msg, e.fields...)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Info(e.rollbarArgs...)
	l.zl.Info(msg, e.fields...)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Warning(e.rollbarArgs...)
	l.zl.Warn(msg, e.fields...)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Error(e.rollbarArgs...)
	l.zl.Error(msg, e.fields...)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	e := l.prepare(msg, args)
	rollbar.Critical(e.rollbarArgs...)
	rollbar.Wait()
	l.zl.Fatal(msg, e.fields...)
}

// Sync flushes both outputs.
func (l RollbarLogger) Sync() {
	rollbar.Wait()
	_ = l.zl.Sync()
}
