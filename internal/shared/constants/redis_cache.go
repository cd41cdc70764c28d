package constants

import (
	"fmt"
	"time"
)

// Redis Cache Configuration
// This file centralizes all Redis cache keys and TTL values for the booking widget service
// Pattern: bookingtms:{module}:{operation}:{identifier}:{params?}

// ================== CACHE TTL DURATIONS ==================

// Semi-Static Data (Medium TTL: changes occasionally)
const (
	TTL_SEMI_STATIC_SHORT = 1 * time.Hour    // 1 hour - for widget lookups
	TTL_SEMI_STATIC_QUICK = 15 * time.Minute // 15 minutes - for public config views
)

// Dynamic Data (Short TTL: changes frequently)
const (
	TTL_DYNAMIC_SHORT = 5 * time.Minute // 5 minutes - for memoized slot lists
	TTL_VERSION_LONG  = 48 * time.Hour  // 48 hours - for snapshot versions
)

// ================== REDIS KEY PREFIXES ==================

const (
	CACHE_PREFIX = "bookingtms"
)

// ================== WIDGETS MODULE ==================

// Widget Cache Keys
const (
	CACHE_KEY_WIDGET_BY_EMBED_KEY = CACHE_PREFIX + ":widgets:embed_key:" // + embed-key
	CACHE_KEY_WIDGET_PUBLIC       = CACHE_PREFIX + ":widgets:public:"    // + widget-id:fingerprint
)

// Widget Cache TTLs
const (
	TTL_WIDGET_BY_EMBED_KEY = TTL_SEMI_STATIC_SHORT // 1 hour
	TTL_WIDGET_PUBLIC       = TTL_SEMI_STATIC_QUICK // 15 minutes
)

// ================== AVAILABILITY MODULE ==================

// Availability Cache Keys
const (
	CACHE_KEY_SLOTS            = CACHE_PREFIX + ":availability:slots:"   // + widget-id:date:fingerprint:version
	CACHE_KEY_SNAPSHOT_VERSION = CACHE_PREFIX + ":availability:version:" // + widget-id:date
)

// Availability Cache TTLs
const (
	TTL_SLOTS            = TTL_DYNAMIC_SHORT // 5 minutes
	TTL_SNAPSHOT_VERSION = TTL_VERSION_LONG  // 48 hours
)

// ================== RATE LIMITING ==================

const (
	CACHE_KEY_RATE_LIMIT = CACHE_PREFIX + ":ratelimit:" // + scope:identifier
)

// ================== CACHE INVALIDATION PATTERNS ==================

const (
	// Public views of one widget across all config fingerprints
	PATTERN_INVALIDATE_WIDGET_PUBLIC = CACHE_KEY_WIDGET_PUBLIC + "%s:*"
)

// ================== HELPER FUNCTIONS ==================

// BuildWidgetByEmbedKey -> "bookingtms:widgets:embed_key:emb_abc123def456"
func BuildWidgetByEmbedKey(embedKey string) string {
	return CACHE_KEY_WIDGET_BY_EMBED_KEY + embedKey
}

func BuildWidgetPublicKey(widgetID, fingerprint string) string {
	return CACHE_KEY_WIDGET_PUBLIC + widgetID + ":" + fingerprint
}

func BuildWidgetPublicPattern(widgetID string) string {
	return fmt.Sprintf(PATTERN_INVALIDATE_WIDGET_PUBLIC, widgetID)
}

// BuildSlotsKey -> "bookingtms:availability:slots:<widget>:2025-06-02:<fingerprint>:v3"
func BuildSlotsKey(widgetID, date, fingerprint, version string) string {
	return CACHE_KEY_SLOTS + widgetID + ":" + date + ":" + fingerprint + ":v" + version
}

// BuildSlotsIndexKey names the set tracking every memoized slot list of one widget/date
func BuildSlotsIndexKey(widgetID, date string) string {
	return CACHE_KEY_SLOTS + widgetID + ":" + date + ":index"
}

func BuildSnapshotVersionKey(widgetID, date string) string {
	return CACHE_KEY_SNAPSHOT_VERSION + widgetID + ":" + date
}

func BuildRateLimitKey(scope, identifier string) string {
	return CACHE_KEY_RATE_LIMIT + scope + ":" + identifier
}
