// Package logging provides the process-wide zap logger: a lazily
// initialised singleton plus a handful of field helpers so callers never
// construct zap.Field slices inline at every call site.
package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	once sync.Once
	base *zap.Logger
)

// L returns the process-wide logger, building a production zap.Logger the
// first time it's called.
func L() *zap.Logger {
	once.Do(func() {
		l, err := zap.NewProduction()
		if err != nil {
			l = zap.NewNop()
		}
		base = l
	})
	return base
}

// SetForTest installs a logger for the duration of a test (e.g. an
// observer-backed logger from zaptest/observer); tests must not depend on
// log output surviving across packages.
func SetForTest(l *zap.Logger) {
	once.Do(func() {})
	base = l
}

// RedactEmail keeps logs free of full addresses while preserving enough to
// correlate entries for the same user: "a***@example.com".
func RedactEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

// Room builds the room-name field used across internal/room log lines.
func Room(name string) zap.Field { return zap.String("room", name) }

// Email redacts before attaching, so call sites never leak a raw address.
func Email(email string) zap.Field { return zap.String("email", RedactEmail(email)) }
