// Package config implements the layered config store: a baked-in default
// tree deep-merged with a persisted override tree, with a masked safe view
// and dotted-path get/set. Parsing follows loader.go's $include resolution,
// env expansion, and yaml/json5 convention.
package config

// Config is the gateway's full recognized option tree.
type Config struct {
	Model         ModelConfig         `yaml:"model"`
	APIKeys       APIKeysConfig       `yaml:"apiKeys"`
	Timeouts      TimeoutsConfig      `yaml:"timeouts"`
	Auth          AuthConfig          `yaml:"auth"`
	Transcription TranscriptionConfig `yaml:"transcription"`
	Channels      map[string]ChannelConfig `yaml:"channels"`
	Session       SessionConfig       `yaml:"session"`
	Skills        SkillsConfig        `yaml:"skills"`
	Agents        AgentsConfig        `yaml:"agents"`
	Cron          CronConfig          `yaml:"cron"`
	Blob          BlobConfig          `yaml:"blob"`
	Server        ServerConfig        `yaml:"server"`
	UserTimezone  string              `yaml:"userTimezone"`
}

// BlobConfig points at the R2/S3-compatible bucket used for transcript
// archives and media persistence (internal/blobstore). Credentials are
// masked by the safe view alongside apiKeys/auth.token.
type BlobConfig struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UsePathStyle    bool   `yaml:"usePathStyle"`
	MediaGrantTTLMs int64  `yaml:"mediaGrantTtlMs"`
}

// ServerConfig configures the process-level listen address and on-disk
// locations the wiring layer (cmd/gatewayd) needs but that don't belong to
// any one collaborator.
type ServerConfig struct {
	ListenAddr    string `yaml:"listenAddr"`
	DataDir       string `yaml:"dataDir"`
	WorkspaceRoot string `yaml:"workspaceRoot"`
}

// ModelConfig selects the default LLM.
type ModelConfig struct {
	Provider string `yaml:"provider"`
	ID       string `yaml:"id"`
}

// APIKeysConfig holds provider credentials. Every field here is masked by
// the safe view.
type APIKeysConfig struct {
	Anthropic  string `yaml:"anthropic"`
	OpenAI     string `yaml:"openai"`
	Google     string `yaml:"google"`
	OpenRouter string `yaml:"openrouter"`
}

// TimeoutsConfig bounds blocking operations.
type TimeoutsConfig struct {
	LLMMs             int64 `yaml:"llmMs"`
	ToolMs            int64 `yaml:"toolMs"`
	SkillProbeMaxAgeMs int64 `yaml:"skillProbeMaxAgeMs"`
}

// AuthConfig holds the bearer token clients present at connect. Token is
// masked by the safe view.
type AuthConfig struct {
	Token string `yaml:"token"`
}

// TranscriptionProvider enumerates audio transcription backends.
type TranscriptionProvider string

const (
	TranscriptionWorkersAI TranscriptionProvider = "workers-ai"
	TranscriptionOpenAI    TranscriptionProvider = "openai"
)

// TranscriptionConfig selects the audio transcription collaborator.
type TranscriptionConfig struct {
	Provider TranscriptionProvider `yaml:"provider"`
}

// DMPolicy enumerates how a channel admits first-contact DMs.
type DMPolicy string

const (
	DMPolicyOpen      DMPolicy = "open"
	DMPolicyAllowlist DMPolicy = "allowlist"
	DMPolicyPairing   DMPolicy = "pairing"
)

// ChannelConfig is the per-channel admission policy.
type ChannelConfig struct {
	DMPolicy  DMPolicy `yaml:"dmPolicy"`
	AllowFrom []string `yaml:"allowFrom"`
}

// DMScope enumerates session scoping strategies for direct messages.
type DMScope string

const (
	DMScopeMain                  DMScope = "main"
	DMScopePerPeer               DMScope = "per-peer"
	DMScopePerChannelPeer        DMScope = "per-channel-peer"
	DMScopePerAccountChannelPeer DMScope = "per-account-channel-peer"
)

// SessionConfig configures session key derivation and default reset policy.
type SessionConfig struct {
	DefaultResetPolicy map[string]any      `yaml:"defaultResetPolicy"`
	MainKey            string              `yaml:"mainKey"`
	DMScope            DMScope             `yaml:"dmScope"`
	IdentityLinks      map[string][]string `yaml:"identityLinks"`
}

// SkillEntryConfig is one skill's gating configuration.
type SkillEntryConfig struct {
	Enabled  *bool    `yaml:"enabled"`
	Always   bool     `yaml:"always"`
	Requires []string `yaml:"requires"`
}

// SkillsConfig configures skill gating per name.
type SkillsConfig struct {
	Entries map[string]SkillEntryConfig `yaml:"entries"`
}

// AgentBinding matches an inbound channel message to an agent.
type AgentBinding struct {
	Channel   string `yaml:"channel"`
	AccountID string `yaml:"accountId"`
	PeerKind  string `yaml:"peerKind"`
	PeerID    string `yaml:"peerId"`
	AgentID   string `yaml:"agentId"`
}

// HeartbeatConfig configures an agent's periodic self-prompt.
type HeartbeatConfig struct {
	Every      string `yaml:"every"` // "30m", "1h", "0m" = disabled
	ActiveFrom string `yaml:"activeFrom"`
	ActiveTo   string `yaml:"activeTo"`
	Timezone   string `yaml:"timezone"` // IANA or "user"
	Target     string `yaml:"target"`   // "none", "last", or channel name
}

// AgentConfig is one configured agent.
type AgentConfig struct {
	ID               string          `yaml:"id"`
	DefaultHeartbeat HeartbeatConfig `yaml:"defaultHeartbeat"`
}

// AgentsConfig lists configured agents and their channel bindings.
type AgentsConfig struct {
	List            []AgentConfig  `yaml:"list"`
	Bindings        []AgentBinding `yaml:"bindings"`
	DefaultHeartbeat HeartbeatConfig `yaml:"defaultHeartbeat"`
}

// CronConfig bounds the cron scheduler.
type CronConfig struct {
	Enabled              bool `yaml:"enabled"`
	MaxJobs              int  `yaml:"maxJobs"`
	MaxRunsPerJobHistory int  `yaml:"maxRunsPerJobHistory"`
	MaxConcurrentRuns    int  `yaml:"maxConcurrentRuns"`
}

// Default returns the baked-in default config tree.
func Default() Config {
	return Config{
		Model: ModelConfig{Provider: "anthropic", ID: "claude-sonnet-4-5"},
		Timeouts: TimeoutsConfig{
			LLMMs:              60_000,
			ToolMs:             30_000,
			SkillProbeMaxAgeMs: 10 * 60 * 1000,
		},
		Transcription: TranscriptionConfig{Provider: TranscriptionWorkersAI},
		Session: SessionConfig{
			MainKey: "main",
			DMScope: DMScopeMain,
		},
		Cron: CronConfig{
			Enabled:              true,
			MaxJobs:              100,
			MaxRunsPerJobHistory: 20,
			MaxConcurrentRuns:    4,
		},
		Blob: BlobConfig{
			Region:          "auto",
			MediaGrantTTLMs: 60 * 60 * 1000,
		},
		Server: ServerConfig{
			ListenAddr:    ":8080",
			DataDir:       "./data",
			WorkspaceRoot: "./workspace",
		},
		UserTimezone: "UTC",
	}
}
