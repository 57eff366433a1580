package config

// Log configures structured logging and the optional rotating log file.
type Log struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

// RPC configures the HTTP API.
type RPC struct {
	// RateLimitPerSecond and Burst bound requests per caller address.
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	Burst              int     `toml:"Burst"`
	// SignatureWindowSeconds is how far a signed request timestamp may drift
	// from the server clock.
	SignatureWindowSeconds int64 `toml:"SignatureWindowSeconds"`
	ReadTimeoutSeconds     int   `toml:"ReadTimeoutSeconds"`
	WriteTimeoutSeconds    int   `toml:"WriteTimeoutSeconds"`
}

// Bridge carries the construction-time controller configuration. Amounts are
// base units ("100000000") or whole tokens with a unit ("1 ACG").
type Bridge struct {
	Administrator     string `toml:"Administrator"`
	Operator          string `toml:"Operator"`
	EmergencyRecovery string `toml:"EmergencyRecovery"`
	Controller        string `toml:"Controller"`
	ChainID           uint64 `toml:"ChainID"`
	Network           string `toml:"Network"`
	OutboundMode      string `toml:"OutboundMode"`
	MinAmount         string `toml:"MinAmount"`
	MaxIn             string `toml:"MaxIn"`
	MaxOut            string `toml:"MaxOut"`
	DailyCapIn        string `toml:"DailyCapIn"`
	DailyCapOut       string `toml:"DailyCapOut"`
}
