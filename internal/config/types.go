package config

// Config is the whole on-disk document. YAML (or JSON), decoded strictly:
// unknown keys are load errors so a typoed rule matcher is caught at load
// time instead of silently never matching.
type Config struct {
	Server    ServerConfig    `json:"server"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage,omitempty"`
	Judge     JudgeConfig     `json:"judge,omitempty"`
	Urgency   UrgencyConfig   `json:"urgency,omitempty"`
	RateLimit RateLimitConfig `json:"rate_limit,omitempty"`
	Rules     RulesConfig     `json:"rules"`
	Sinks     SinksConfig     `json:"sinks,omitempty"`

	// ContactsPath points at a name->number JSON map used to derive
	// tel:/sms: action URLs for call and message sources.
	ContactsPath string `json:"contacts_path,omitempty"`
}

type ServerConfig struct {
	Address string `json:"address"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type StorageConfig struct {
	Driver string `json:"driver"` // "sqlite" or "none"
	Path   string `json:"path"`
	// BusyTimeout and Retention are Go duration strings (e.g. "5s", "720h").
	BusyTimeout string `json:"busy_timeout,omitempty"`
	Retention   string `json:"retention,omitempty"`
}

type JudgeConfig struct {
	URL   string `json:"url"`
	Model string `json:"model"`
	// Timeout and ProbeTimeout are Go duration strings.
	Timeout      string `json:"timeout,omitempty"`
	ProbeTimeout string `json:"probe_timeout,omitempty"`
}

// UrgencyConfig controls the second-chance urgency check for rule-dropped
// notifications.
type UrgencyConfig struct {
	Enabled bool `json:"enabled"`
	// Sources allow-lists eligible sources; empty means all.
	Sources []string `json:"sources,omitempty"`
	// BatchWindow is a Go duration string.
	BatchWindow string `json:"batch_window,omitempty"`
	MaxBatch    int    `json:"max_batch,omitempty"`
}

type RateLimitConfig struct {
	MaxPerHour int `json:"max_per_hour,omitempty"`
	// Cooldown and DedupWindow are Go duration strings.
	Cooldown    string `json:"cooldown,omitempty"`
	DedupWindow string `json:"dedup_window,omitempty"`
	// SourceDedupWindows overrides the dedup window per source
	// (e.g. whatsapp: "24h").
	SourceDedupWindows map[string]string `json:"source_dedup_windows,omitempty"`
	ExemptSources      []string          `json:"exempt_sources,omitempty"`
	NoCooldownSources  []string          `json:"no_cooldown_sources,omitempty"`
}

type RulesConfig struct {
	// UnknownSources is the action for sources with no configured entry.
	UnknownSources string                  `json:"unknown_sources,omitempty"`
	Global         []RuleEntry             `json:"global,omitempty"`
	Sources        map[string]SourceConfig `json:"sources,omitempty"`
}

type SourceConfig struct {
	Default string      `json:"default,omitempty"` // send or drop
	Rules   []RuleEntry `json:"rules,omitempty"`
}

// RuleEntry is one rule as written in the config file. Matchers are
// explicit optional fields rather than a free-form key bag; the strict
// decoder rejects anything else.
type RuleEntry struct {
	SenderContains    *string `json:"sender_contains,omitempty"`
	SenderNotContains *string `json:"sender_not_contains,omitempty"`
	BodyContains      *string `json:"body_contains,omitempty"`
	BodyNotContains   *string `json:"body_not_contains,omitempty"`
	Contains          *string `json:"contains,omitempty"`
	NotContains       *string `json:"not_contains,omitempty"`
	SenderRegex       *string `json:"sender_regex,omitempty"`
	BodyRegex         *string `json:"body_regex,omitempty"`
	Regex             *string `json:"regex,omitempty"`

	Action   string `json:"action,omitempty"`   // send | drop | judge (default send)
	Priority string `json:"priority,omitempty"` // default | high | critical
	Prompt   string `json:"prompt,omitempty"`   // custom judge instruction
}

type SinksConfig struct {
	Console  ConsoleSinkConfig  `json:"console,omitempty"`
	Ntfy     NtfySinkConfig     `json:"ntfy,omitempty"`
	Bark     BarkSinkConfig     `json:"bark,omitempty"`
	Twilio   TwilioSinkConfig   `json:"twilio,omitempty"`
	Telegram TelegramSinkConfig `json:"telegram,omitempty"`
	// RatePerSec bounds outbound sends across all sinks.
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

type ConsoleSinkConfig struct {
	Enabled *bool `json:"enabled,omitempty"` // nil defaults to true
}

type NtfySinkConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	URL     string `json:"url,omitempty"`
}

type BarkSinkConfig struct {
	Enabled   bool   `json:"enabled,omitempty"`
	URL       string `json:"url,omitempty"`
	DeviceKey string `json:"device_key,omitempty"`
}

type TwilioSinkConfig struct {
	Enabled    bool   `json:"enabled,omitempty"`
	AccountSID string `json:"account_sid,omitempty"`
	AuthToken  string `json:"auth_token,omitempty"`
	From       string `json:"from,omitempty"`
	To         string `json:"to,omitempty"`
}

type TelegramSinkConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Token   string `json:"token,omitempty"`
	ChatID  int64  `json:"chat_id,omitempty"`
}
