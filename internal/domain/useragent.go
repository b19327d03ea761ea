package domain

import "strings"

// Device types recorded in visit details
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
	DeviceUnknown = "unknown"
)

var mobileMarkers = []string{"mobile", "android", "iphone", "ipod", "blackberry", "windows phone", "opera mini"}

var tabletMarkers = []string{"tablet", "ipad", "kindle", "silk"}

// DetectDeviceType classifies a user agent into a coarse device type
func DetectDeviceType(userAgent string) string {
	if userAgent == "" {
		return DeviceUnknown
	}
	ua := strings.ToLower(userAgent)

	for _, m := range mobileMarkers {
		if strings.Contains(ua, m) {
			return DeviceMobile
		}
	}
	for _, m := range tabletMarkers {
		if strings.Contains(ua, m) {
			return DeviceTablet
		}
	}
	return DeviceDesktop
}

// DetectBrowser classifies a user agent into a browser family. Edge and
// Chrome must be checked before Safari since their agents contain "safari".
func DetectBrowser(userAgent string) string {
	if userAgent == "" {
		return "other"
	}
	ua := strings.ToLower(userAgent)

	switch {
	case strings.Contains(ua, "edg"):
		return "edge"
	case strings.Contains(ua, "opr") || strings.Contains(ua, "opera"):
		return "opera"
	case strings.Contains(ua, "chrome") && !strings.Contains(ua, "chromium"):
		return "chrome"
	case strings.Contains(ua, "firefox"):
		return "firefox"
	case strings.Contains(ua, "safari"):
		return "safari"
	default:
		return "other"
	}
}
