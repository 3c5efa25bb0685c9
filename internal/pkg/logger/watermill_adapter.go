package logger

import (
	"github.com/ThreeDotsLabs/watermill"
)

type watermillAdapter struct {
	log    ILogger
	fields watermill.LogFields
}

// NewWatermillAdapter routes watermill's internal logging into an ILogger.
// Info is demoted to debug since gochannel reports every unsubscribed publish.
func NewWatermillAdapter(log ILogger) watermill.LoggerAdapter {
	return &watermillAdapter{log: log}
}

func (a *watermillAdapter) details(fields watermill.LogFields) map[string]interface{} {
	out := make(map[string]interface{}, len(a.fields)+len(fields))
	for k, v := range a.fields {
		out[k] = v
	}
	for k, v := range fields {
		out[k] = v
	}
	return out
}

func (a *watermillAdapter) Error(msg string, err error, fields watermill.LogFields) {
	d := a.details(fields)
	if err != nil {
		d["error"] = err.Error()
	}
	a.log.Error("Watermill", msg, d)
}

func (a *watermillAdapter) Info(msg string, fields watermill.LogFields) {
	a.log.Debug("Watermill", msg, a.details(fields))
}

func (a *watermillAdapter) Debug(msg string, fields watermill.LogFields) {
	a.log.Debug("Watermill", msg, a.details(fields))
}

func (a *watermillAdapter) Trace(string, watermill.LogFields) {}

func (a *watermillAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &watermillAdapter{log: a.log, fields: a.details(fields)}
}
