// Package device derives a human-readable device label from a request
// User-Agent. The label is attached to login responses and audit events
// so account activity can be traced to "Chrome on Linux" rather than a
// raw UA string.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// DisplayName renders a User-Agent as "Browser on OS", e.g.
// "Firefox on Linux" or "Safari on iPhone" for mobile clients.
func DisplayName(userAgentString string) string {
	if strings.TrimSpace(userAgentString) == "" {
		return unknownDevice
	}

	ua := useragent.New(userAgentString)

	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}

	target := ua.OS()
	if ua.Mobile() {
		if platform := ua.Platform(); platform != "" {
			target = platform
		}
	}
	if target == "" {
		target = "Unknown OS"
	}

	return strings.TrimSpace(browser + " on " + target)
}
