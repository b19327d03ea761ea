package redis

import "fmt"

// Key namespaces for the counting engine. Each component owns writes to its
// own namespace; the date segment uses the 2006-01-02 layout.
const (
	KeySettings      = "settings"
	KeyDisplay       = "display"
	KeyUniqueDaily   = "unique:%s"      // unique:2024-01-15
	KeyAggTotal      = "agg:total:%s"   // hash {views, unique}
	KeyAggPage       = "agg:page:%s:%s" // agg:page:home:2024-01-15
	KeyAggHour       = "agg:hour:%d:%s" // agg:hour:14:2024-01-15
	KeyAggBot        = "agg:bot:%s"     // bot-classified event tally
	KeyAggLifetime   = "agg:lifetime"   // all-time view counter, never reset
	KeyRateLimit     = "ratelimit:%s:%d" // ratelimit:<identity>:<window start unix>
	KeyBurst         = "burst:%s:%d"     // tighter bot-filter window
	KeyDenylist      = "denylist"
	KeyViolations    = "violations:%s" // rate-limit violations per identity
	KeyVisitDetails  = "details:%s" // capped ring of recent visit records
	KeyUpdaterStatus = "updater:last_success"
)

// KeyBuilder provides environment-aware key building for the counter store
type KeyBuilder struct {
	prefix string
}

// NewKeyBuilder creates a new key builder with environment-based prefix
func NewKeyBuilder(environment string) *KeyBuilder {
	prefix := "prod"
	if environment == "development" || environment == "staging" || environment == "test" {
		prefix = environment
	}

	return &KeyBuilder{
		prefix: prefix,
	}
}

// BuildKey constructs a store key with the environment prefix
func (kb *KeyBuilder) BuildKey(key string) string {
	return fmt.Sprintf("%s:%s", kb.prefix, key)
}

// GetPrefix returns the current environment prefix
func (kb *KeyBuilder) GetPrefix() string {
	return kb.prefix
}

func (kb *KeyBuilder) KeySettings() string {
	return kb.BuildKey(KeySettings)
}

func (kb *KeyBuilder) KeyDisplay() string {
	return kb.BuildKey(KeyDisplay)
}

func (kb *KeyBuilder) KeyUniqueDaily(date string) string {
	return kb.BuildKey(fmt.Sprintf(KeyUniqueDaily, date))
}

func (kb *KeyBuilder) KeyAggTotal(date string) string {
	return kb.BuildKey(fmt.Sprintf(KeyAggTotal, date))
}

func (kb *KeyBuilder) KeyAggPage(pageID, date string) string {
	return kb.BuildKey(fmt.Sprintf(KeyAggPage, pageID, date))
}

func (kb *KeyBuilder) KeyAggHour(hour int, date string) string {
	return kb.BuildKey(fmt.Sprintf(KeyAggHour, hour, date))
}

func (kb *KeyBuilder) KeyAggBot(date string) string {
	return kb.BuildKey(fmt.Sprintf(KeyAggBot, date))
}

func (kb *KeyBuilder) KeyAggLifetime() string {
	return kb.BuildKey(KeyAggLifetime)
}

func (kb *KeyBuilder) KeyRateLimit(identity string, windowStart int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyRateLimit, identity, windowStart))
}

func (kb *KeyBuilder) KeyBurst(identity string, windowStart int64) string {
	return kb.BuildKey(fmt.Sprintf(KeyBurst, identity, windowStart))
}

func (kb *KeyBuilder) KeyDenylist() string {
	return kb.BuildKey(KeyDenylist)
}

func (kb *KeyBuilder) KeyViolations(identity string) string {
	return kb.BuildKey(fmt.Sprintf(KeyViolations, identity))
}

func (kb *KeyBuilder) KeyVisitDetails(date string) string {
	return kb.BuildKey(fmt.Sprintf(KeyVisitDetails, date))
}

func (kb *KeyBuilder) KeyUpdaterStatus() string {
	return kb.BuildKey(KeyUpdaterStatus)
}
