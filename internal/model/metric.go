package model

// Rating is the Web-Vitals three-state classification of a single observation.
type Rating string

const (
	RatingGood             Rating = "good"
	RatingNeedsImprovement Rating = "needs-improvement"
	RatingPoor             Rating = "poor"
)

// Valid reports whether r is one of the three known ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingGood, RatingNeedsImprovement, RatingPoor:
		return true
	}
	return false
}

// UserTier classifies the requesting client and gates SLA-based alerting.
type UserTier string

const (
	TierRoyal         UserTier = "royal"
	TierStandard      UserTier = "standard"
	TierAccessibility UserTier = "accessibility"
)

// Valid reports whether t is a known tier.
func (t UserTier) Valid() bool {
	switch t {
	case TierRoyal, TierStandard, TierAccessibility:
		return true
	}
	return false
}

// MetricRecord is one client-observed performance measurement.
// The first block mirrors the reporter's wire format; the fields after
// the enrichment marker are filled in server-side on ingestion and are
// never accepted from the client.
type MetricRecord struct {
	ID        string  `json:"id,omitempty"`
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Rating    Rating  `json:"rating"`
	Delta     float64 `json:"delta,omitempty"`
	Timestamp int64   `json:"timestamp"` // epoch milliseconds, client clock
	URL       string  `json:"url,omitempty"`
	UserAgent string  `json:"userAgent,omitempty"`

	// Optional client context.
	ConnectionType   string `json:"connectionType,omitempty"`
	EffectiveType    string `json:"effectiveType,omitempty"`
	Component        string `json:"component,omitempty"`
	SearchQuery      string `json:"searchQuery,omitempty"`
	CategoryAccessed string `json:"categoryAccessed,omitempty"`
	AssistiveTech    bool   `json:"assistiveTech,omitempty"`
	ThemeMode        string `json:"themeMode,omitempty"`
	OfflineMode      bool   `json:"offlineMode,omitempty"`
	VoiceSearchUsed  bool   `json:"voiceSearchUsed,omitempty"`

	// Server-side enrichment. RequestUserAgent is the transport-level
	// header; the client-reported UserAgent above stays untouched.
	SessionID        string   `json:"sessionId,omitempty"`
	UserTier         UserTier `json:"userType,omitempty"`
	ServerTimestamp  int64    `json:"serverTimestamp,omitempty"` // epoch milliseconds
	Origin           string   `json:"origin,omitempty"`
	Referer          string   `json:"referer,omitempty"`
	RequestUserAgent string   `json:"user-agent,omitempty"`
}

// PayloadMetadata carries page-level context shared by a metric batch.
type PayloadMetadata struct {
	URL            string `json:"url"`
	UserAgent      string `json:"userAgent"`
	ConnectionType string `json:"connectionType,omitempty"`
	EffectiveType  string `json:"effectiveType,omitempty"`
}

// IngestPayload is the body of POST /api/analytics/performance.
type IngestPayload struct {
	SessionID string          `json:"sessionId"`
	UserTier  UserTier        `json:"userType"`
	Timestamp int64           `json:"timestamp"`
	Metrics   []MetricRecord  `json:"metrics"`
	Metadata  PayloadMetadata `json:"metadata"`
}
