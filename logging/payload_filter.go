package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PayloadThreshold is the length above which a base64-looking string is
// treated as a pixel buffer.
const PayloadThreshold = 256

// IsPayload reports whether s looks like an encoded image buffer.
func IsPayload(s string) bool {
	if len(s) < PayloadThreshold {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '+', c == '/', c == '=', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}

// SummarizePayload is what a payload of n bytes is logged as.
func SummarizePayload(n int) string {
	return fmt.Sprintf("[payload %d bytes]", n)
}

// FilterField redacts credentials and collapses payloads in a single field.
func FilterField(f zap.Field) zap.Field {
	if IsSensitiveField(f.Key) {
		return zap.String(f.Key, RedactedPlaceholder)
	}

	switch f.Type {
	case zapcore.StringType:
		if IsPayload(f.String) {
			return zap.String(f.Key, SummarizePayload(len(f.String)))
		}
		if redacted := RedactSensitiveData(f.String); redacted != f.String {
			return zap.String(f.Key, redacted)
		}
	case zapcore.BinaryType, zapcore.ByteStringType:
		if b, ok := f.Interface.([]byte); ok && len(b) >= PayloadThreshold {
			return zap.String(f.Key, SummarizePayload(len(b)))
		}
	}
	return f
}

func filterFields(fields []zapcore.Field) []zapcore.Field {
	if len(fields) == 0 {
		return fields
	}
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		out[i] = FilterField(f)
	}
	return out
}

type filterCore struct {
	zapcore.Core
}

// NewFilterCore wraps core so every field passes through FilterField,
// including fields attached with With.
func NewFilterCore(core zapcore.Core) zapcore.Core {
	return &filterCore{Core: core}
}

func (c *filterCore) With(fields []zapcore.Field) zapcore.Core {
	return &filterCore{Core: c.Core.With(filterFields(fields))}
}

func (c *filterCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *filterCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, filterFields(fields))
}
