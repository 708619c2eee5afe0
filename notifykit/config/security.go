package config

import (
	"log/slog"
	"strings"

	"github.com/tinywideclouds/go-notification-kit/pkg/notify"
)

// SecurityAudit warns about credential values that look like literal
// secrets rather than environment-variable indirections when the process
// is flagged production. Findings are advisory only; the audit never
// blocks initialization.
func SecurityAudit(pc notify.ProviderConfig, production bool, logger *slog.Logger) {
	if !production {
		return
	}
	auditLogger := logger.With("component", "SecurityAudit")

	warn := func(field string) {
		auditLogger.Warn("credential looks like a hard-coded secret; prefer an environment-variable indirection",
			"provider", string(pc.Kind),
			"field", field)
	}

	if pc.FCM != nil {
		if looksLikeLiteralSecret(pc.FCM.APIKey) && strings.HasPrefix(pc.FCM.APIKey, "AIza") {
			warn("fcm.api_key")
		}
		if strings.Contains(pc.FCM.APNsP8Key, "PRIVATE KEY") {
			warn("fcm.apns_p8_key")
		}
	}
	if pc.OneSignal != nil {
		if looksLikeLiteralSecret(pc.OneSignal.APIKey) && len(pc.OneSignal.APIKey) >= 32 {
			warn("onesignal.api_key")
		}
	}
}

// looksLikeLiteralSecret reports whether a value is neither empty nor an
// env indirection like "${KEY}" or "env:KEY".
func looksLikeLiteralSecret(v string) bool {
	if v == "" {
		return false
	}
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return false
	}
	if strings.HasPrefix(v, "env:") {
		return false
	}
	return true
}
