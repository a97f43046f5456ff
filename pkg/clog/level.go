package clog

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
)

// HTTPStatusLevel picks the level of a request log line. A 409 is an
// ordinary outcome on a shared board (two operators moved the same ticket),
// so it stays at Info.
func HTTPStatusLevel(status int) slog.Level {
	switch {
	case status == http.StatusConflict, status == 499:
		return slog.LevelInfo
	case status >= 100 && status < 400:
		return slog.LevelInfo
	case status >= 400 && status < 500:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

var connectCodeLevels = map[connect.Code]slog.Level{
	connect.CodeCanceled:           slog.LevelInfo,
	connect.CodeInvalidArgument:    slog.LevelInfo,
	connect.CodeDeadlineExceeded:   slog.LevelWarn,
	connect.CodeNotFound:           slog.LevelInfo,
	connect.CodeAlreadyExists:      slog.LevelInfo,
	connect.CodePermissionDenied:   slog.LevelInfo,
	connect.CodeFailedPrecondition: slog.LevelInfo,
	connect.CodeAborted:            slog.LevelInfo,
	connect.CodeOutOfRange:         slog.LevelInfo,
	connect.CodeUnauthenticated:    slog.LevelInfo,
	connect.CodeUnavailable:        slog.LevelWarn,
}

// ConnectCodeLevel picks the level of an RPC log line. Codes without an
// entry are server faults.
func ConnectCodeLevel(code connect.Code) slog.Level {
	if l, ok := connectCodeLevels[code]; ok {
		return l
	}
	return slog.LevelError
}
