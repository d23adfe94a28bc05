// SPDX-License-Identifier: MIT
package transport

import (
	applog "microtools/internal/log"
)

// LoggingTransport writes status changes to the log. Repeated identical
// states are not logged again.
type LoggingTransport struct {
	lastRecording bool
	lastError     string
	lastDropped   uint64
}

func NewLoggingTransport() *LoggingTransport {
	applog.Debugf("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs transitions found in a Status. Other data is logged at debug
// level.
func (lt *LoggingTransport) Send(data any) error {
	s, ok := data.(Status)
	if !ok {
		applog.Debugf("LoggingTransport: %T %+v", data, data)
		return nil
	}

	if s.Recording != lt.lastRecording {
		if s.Recording {
			applog.Infof("Recording %d channels (%s)", s.Channels, s.FormatName)
		} else {
			applog.Infof("Recording stopped after %.2fs", s.Elapsed)
		}
		lt.lastRecording = s.Recording
	}
	if s.LastError != "" && s.LastError != lt.lastError {
		applog.Errorf("Recorder error: %s", s.LastError)
	}
	lt.lastError = s.LastError
	if s.Dropped != lt.lastDropped {
		applog.Warnf("Recorder: %d recordings dropped, writer queue full", s.Dropped-lt.lastDropped)
		lt.lastDropped = s.Dropped
	}
	return nil
}

func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
