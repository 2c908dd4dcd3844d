// Package useragent classifies raw User-Agent strings into device type,
// browser, and operating system using fixed, ordered rules so the same
// input always yields the same classification.
package useragent

import (
	"strings"
	"sync"

	"go.elara.ws/pcre"
)

// Unknown is the value used when a dimension cannot be classified.
const Unknown = "Unknown"

// Device types
const (
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
	DeviceTablet  = "tablet"
)

// UserAgent holds the classified dimensions of a raw User-Agent string.
type UserAgent struct {
	DeviceType      string
	Browser         string
	OperatingSystem string
}

// RegexCache stores compiled regex patterns for performance
type RegexCache struct {
	mu    sync.RWMutex
	cache map[string]*pcre.Regexp
}

var regexCache = &RegexCache{
	cache: make(map[string]*pcre.Regexp),
}

// getCompiledRegex returns a compiled regex from cache or compiles and caches it
func (rc *RegexCache) getCompiledRegex(pattern string) (*pcre.Regexp, error) {
	rc.mu.RLock()
	if compiled, exists := rc.cache[pattern]; exists {
		rc.mu.RUnlock()
		return compiled, nil
	}
	rc.mu.RUnlock()

	rc.mu.Lock()
	defer rc.mu.Unlock()

	// Double-check after acquiring write lock
	if compiled, exists := rc.cache[pattern]; exists {
		return compiled, nil
	}

	compiled, err := pcre.Compile(pattern)
	if err != nil {
		return nil, err
	}

	rc.cache[pattern] = compiled
	return compiled, nil
}

func matches(pattern, ua string) bool {
	re, err := regexCache.getCompiledRegex(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(ua)
}

const (
	tabletPattern = `(?i)tablet|ipad|playbook|silk|kindle`
	mobilePattern = `(?i)mobile|iphone|ipod|android|blackberry|iemobile|opera mini|windows phone`
)

// Browser detection patterns checked in order. Order matters: Chrome-based
// browsers include "Chrome" in their User-Agent, and almost everything
// includes "Safari", so the more specific tokens are checked first.
var browserPatterns = []struct {
	name    string
	pattern string
}{
	{"Firefox", `Firefox|FxiOS`},
	{"Samsung Browser", `SamsungBrowser`},
	{"Opera", `Opera|OPR/`},
	{"Internet Explorer", `MSIE|Trident`},
	{"Edge", `Edg`},
	{"Chrome", `Chrome|CriOS`},
	{"Safari", `Safari`},
}

// Operating system checks in order. Android User-Agents contain "Linux"
// and iOS User-Agents contain "Mac OS", so the mobile systems are checked
// before their desktop counterparts.
var osChecks = []struct {
	name       string
	substrings []string
}{
	{"Windows", []string{"Windows"}},
	{"Android", []string{"Android"}},
	{"iOS", []string{"iPhone", "iPad", "iPod", "iOS"}},
	{"macOS", []string{"Mac OS", "Macintosh"}},
	{"Linux", []string{"Linux", "X11"}},
}

// Classify parses a raw User-Agent string into its device type, browser,
// and operating system. It is a pure function: no lookups, no state.
func Classify(rawUserAgent string) UserAgent {
	return UserAgent{
		DeviceType:      classifyDevice(rawUserAgent),
		Browser:         classifyBrowser(rawUserAgent),
		OperatingSystem: classifyOS(rawUserAgent),
	}
}

// classifyDevice checks tablet markers before mobile markers because tablet
// User-Agents usually contain mobile markers too (e.g. Android tablets).
// Anything without a tablet or mobile marker is a desktop.
func classifyDevice(ua string) string {
	if matches(tabletPattern, ua) {
		return DeviceTablet
	}
	if matches(mobilePattern, ua) {
		return DeviceMobile
	}
	return DeviceDesktop
}

func classifyBrowser(ua string) string {
	for _, bp := range browserPatterns {
		if matches(bp.pattern, ua) {
			return bp.name
		}
	}
	return Unknown
}

func classifyOS(ua string) string {
	for _, oc := range osChecks {
		for _, sub := range oc.substrings {
			if strings.Contains(ua, sub) {
				return oc.name
			}
		}
	}
	return Unknown
}
