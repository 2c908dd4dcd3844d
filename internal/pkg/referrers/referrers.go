// Package referrers maps referrer hostnames to marketing channels and
// friendly display names, and classifies the traffic source of a session.
package referrers

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Traffic source values stored on sessions.
const (
	SourceDirect   = "direct"
	SourceOrganic  = "organic"
	SourceSocial   = "social"
	SourceEmail    = "email"
	SourcePaid     = "paid"
	SourceReferral = "referral"
)

// Channels a known hostname can belong to.
const (
	ChannelSearch    = "search"
	ChannelSocial    = "social"
	ChannelEmail     = "email"
	ChannelPaid      = "paid"
	ChannelCommunity = "community"
)

//go:embed referrers.yml
var referrersYAML []byte

type yamlEntry struct {
	Domain string `yaml:"domain"`
	Name   string `yaml:"name"`
}

type referrerInfo struct {
	Name    string
	Channel string
}

var (
	loadOnce sync.Once
	loadErr  error
	byDomain map[string]referrerInfo
)

func load() {
	loadOnce.Do(func() {
		var db map[string][]yamlEntry
		if err := yaml.Unmarshal(referrersYAML, &db); err != nil {
			loadErr = fmt.Errorf("failed to parse referrers database: %w", err)
			byDomain = map[string]referrerInfo{}
			return
		}

		byDomain = make(map[string]referrerInfo, 128)
		for channel, entries := range db {
			for _, e := range entries {
				byDomain[strings.ToLower(e.Domain)] = referrerInfo{Name: e.Name, Channel: channel}
			}
		}
	})
}

// lookup resolves a hostname against the embedded database, matching the
// exact hostname first, then without a www. prefix, then as a subdomain
// of a known domain.
func lookup(hostname string) (referrerInfo, bool) {
	load()

	hostname = strings.ToLower(strings.TrimSpace(hostname))
	if hostname == "" {
		return referrerInfo{}, false
	}

	if info, ok := byDomain[hostname]; ok {
		return info, true
	}

	if strings.HasPrefix(hostname, "www.") {
		hostname = hostname[4:]
		if info, ok := byDomain[hostname]; ok {
			return info, true
		}
	}

	for domain, info := range byDomain {
		if strings.HasSuffix(hostname, "."+domain) {
			return info, true
		}
	}

	return referrerInfo{}, false
}

// Channel returns the channel of a known referrer hostname, or "" when
// the hostname is not in the database.
func Channel(hostname string) string {
	info, ok := lookup(hostname)
	if !ok {
		return ""
	}
	return info.Channel
}

// FriendlyName returns a human-friendly name for a referrer hostname.
// Unknown hostnames get the www. prefix stripped and the first letter
// capitalized.
func FriendlyName(hostname string) string {
	if info, ok := lookup(hostname); ok {
		return info.Name
	}

	hostname = strings.ToLower(strings.TrimSpace(hostname))
	hostname = strings.TrimPrefix(hostname, "www.")
	return capitalizeFirst(hostname)
}

// UTM source/medium tokens used for substring classification.
var (
	utmPaidTokens    = []string{"cpc", "ppc", "paid", "ads", "adwords", "display"}
	utmOrganicTokens = []string{"google", "bing", "duckduckgo", "yahoo", "ecosia", "baidu", "yandex", "search", "organic"}
	utmSocialTokens  = []string{"facebook", "twitter", "linkedin", "instagram", "tiktok", "pinterest", "reddit", "youtube", "bluesky", "mastodon", "social"}
	utmEmailTokens   = []string{"email", "newsletter", "mail"}
)

// ClassifyTrafficSource determines the traffic source of a session.
//
// When a UTM source is present it wins: the source and medium are matched
// by substring into paid, organic, social, or email, and anything else is
// a referral. Without UTM parameters the referrer hostname decides: search
// engines are organic, social networks are social, any other referrer is
// a referral, and no referrer at all is direct.
func ClassifyTrafficSource(utmSource, utmMedium, referrerHostname string) string {
	if utmSource != "" {
		source := strings.ToLower(utmSource)
		medium := strings.ToLower(utmMedium)

		if containsAny(medium, utmPaidTokens) || containsAny(source, utmPaidTokens) {
			return SourcePaid
		}
		if containsAny(source, utmOrganicTokens) || medium == "organic" {
			return SourceOrganic
		}
		if containsAny(source, utmSocialTokens) || medium == "social" {
			return SourceSocial
		}
		if containsAny(source, utmEmailTokens) || containsAny(medium, utmEmailTokens) {
			return SourceEmail
		}
		return SourceReferral
	}

	if referrerHostname != "" {
		switch Channel(referrerHostname) {
		case ChannelSearch:
			return SourceOrganic
		case ChannelSocial:
			return SourceSocial
		default:
			return SourceReferral
		}
	}

	return SourceDirect
}

func containsAny(s string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(s, token) {
			return true
		}
	}
	return false
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
