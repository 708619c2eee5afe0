package notify

// Feature names a single notification capability. The platform detector
// works with an explicit allow-list of features per surface; anything not
// listed is unsupported.
type Feature string

const (
	FeaturePush           Feature = "push"
	FeatureLocalSchedule  Feature = "local_schedule"
	FeatureChannels       Feature = "channels"
	FeatureBadge          Feature = "badge"
	FeatureCriticalAlerts Feature = "critical_alerts"
	FeatureInApp          Feature = "in_app"
	FeatureSound          Feature = "sound"
	FeatureActions        Feature = "actions"
)

// Capabilities is the merged platform+provider feature table the kit
// exposes to callers. Flags are derived, never set directly by callers.
type Capabilities struct {
	Push           bool `json:"push"`
	LocalSchedule  bool `json:"local_schedule"`
	Channels       bool `json:"channels"`
	Badge          bool `json:"badge"`
	CriticalAlerts bool `json:"critical_alerts"`
	InApp          bool `json:"in_app"`
	Sound          bool `json:"sound"`
	Actions        bool `json:"actions"`

	// Provider-declared extras, merged in when a provider initializes.
	NativeTopics bool `json:"native_topics"`
	RichMedia    bool `json:"rich_media"`
	Scheduling   bool `json:"scheduling"`
	Analytics    bool `json:"analytics"`
	Segmentation bool `json:"segmentation"`
}

// Has is a feature lookup over the boolean table.
func (c Capabilities) Has(f Feature) bool {
	switch f {
	case FeaturePush:
		return c.Push
	case FeatureLocalSchedule:
		return c.LocalSchedule
	case FeatureChannels:
		return c.Channels
	case FeatureBadge:
		return c.Badge
	case FeatureCriticalAlerts:
		return c.CriticalAlerts
	case FeatureInApp:
		return c.InApp
	case FeatureSound:
		return c.Sound
	case FeatureActions:
		return c.Actions
	default:
		return false
	}
}

// ProviderCapabilities declares which optional features a backend variant
// supports. NativeTopics is the explicit flag callers branch on instead of
// inferring topic support from provider identity.
type ProviderCapabilities struct {
	NativeTopics bool `json:"native_topics"`
	RichMedia    bool `json:"rich_media"`
	Scheduling   bool `json:"scheduling"`
	Analytics    bool `json:"analytics"`
	Segmentation bool `json:"segmentation"`
	Badge        bool `json:"badge"`
}
