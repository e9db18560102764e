package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey carries the request identifier on a context.Context.
type RequestIDKey struct{}

// New builds the service logger: JSON output in production, colored console
// everywhere else. The caller owns the returned logger and its Sync.
func New(env string) (*zap.Logger, error) {
	if env == "production" {
		return zap.NewProductionConfig().Build()
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return cfg.Build()
}

// PII masking. Account emails, phones, and client IPs appear in log output
// and published stub events only through these helpers.

// MaskEmail keeps at most the first three characters of the local part and
// the full domain: john.doe@example.com becomes joh***@example.com.
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}

	local, domain := email[:at], email[at:]
	if len(local) > 3 {
		local = local[:3]
	}
	return local + "***" + domain
}

// MaskPhone keeps the leading plus-and-prefix and the last four digits:
// +31612345678 becomes +31***5678.
func MaskPhone(phone string) string {
	if phone == "" {
		return ""
	}

	digits := len(phone)
	if digits <= 4 {
		return "***"
	}

	prefix := ""
	if strings.HasPrefix(phone, "+") && digits > 7 {
		prefix = phone[:3]
	}
	return prefix + "***" + phone[digits-4:]
}

// MaskIP keeps the first two IPv4 octets or the first four IPv6 groups.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if octets := strings.Split(ip, "."); len(octets) == 4 {
		return octets[0] + "." + octets[1] + ".*.*"
	}
	if groups := strings.Split(ip, ":"); len(groups) >= 4 {
		return strings.Join(groups[:4], ":") + ":*:*:*:*"
	}
	return "***"
}

// MaskString redacts the middle of an arbitrary secret, keeping the first
// and last two characters as a correlation hint.
func MaskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}
