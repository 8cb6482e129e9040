package config

// GatewayConfig represents the masked-address domain settings
type GatewayConfig struct {
	Domain string
}

// ServerConfig represents the webhook server settings
type ServerConfig struct {
	ListenAddress   string
	ShutdownTimeout string
}

// LLMConfig represents the configuration for the classifier provider
type LLMConfig struct {
	Provider         string
	FallbackSummary  string
	FallbackCategory string
}

// OpenAIConfig represents the configuration for OpenAI
type OpenAIConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// GeminiConfig represents the configuration for Google Gemini
type GeminiConfig struct {
	APIKey      string
	ModelName   string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// BedrockConfig represents the configuration for Amazon Bedrock
type BedrockConfig struct {
	Region      string
	ModelID     string
	MaxTokens   int
	Temperature float32
	TopP        float32
	MaxBodySize int
}

// StoreConfig represents the persistence settings
type StoreConfig struct {
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// MailgunConfig represents the Mailgun API settings
type MailgunConfig struct {
	APIKey     string
	SigningKey string
	Domain     string
	APIBase    string
}

// SMTPConfig represents the SMTP relay settings
type SMTPConfig struct {
	Address  string
	Username string
	Password string
}

// GetGateway returns the gateway configuration
func (c *Config) GetGateway() GatewayConfig {
	return GatewayConfig{
		Domain: c.GetString("gateway.domain"),
	}
}

// GetServer returns the server configuration
func (c *Config) GetServer() ServerConfig {
	return ServerConfig{
		ListenAddress:   c.GetString("server.listen_address"),
		ShutdownTimeout: c.GetString("server.shutdown_timeout"),
	}
}

// GetLLM returns the classifier provider configuration
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		Provider:         c.GetString("llm.provider"),
		FallbackSummary:  c.GetString("llm.fallback_summary"),
		FallbackCategory: c.GetString("llm.fallback_category"),
	}
}

// GetOpenAI returns the OpenAI configuration
func (c *Config) GetOpenAI() OpenAIConfig {
	return OpenAIConfig{
		APIKey:      c.GetString("openai.api_key"),
		ModelName:   c.GetString("openai.model_name"),
		MaxTokens:   c.GetInt("openai.max_tokens"),
		Temperature: float32(c.GetFloat64("openai.temperature")),
		TopP:        float32(c.GetFloat64("openai.top_p")),
		MaxBodySize: c.GetInt("openai.max_body_size"),
	}
}

// GetGemini returns the Gemini configuration
func (c *Config) GetGemini() GeminiConfig {
	return GeminiConfig{
		APIKey:      c.GetString("gemini.api_key"),
		ModelName:   c.GetString("gemini.model_name"),
		MaxTokens:   c.GetInt("gemini.max_tokens"),
		Temperature: float32(c.GetFloat64("gemini.temperature")),
		TopP:        float32(c.GetFloat64("gemini.top_p")),
		MaxBodySize: c.GetInt("gemini.max_body_size"),
	}
}

// GetBedrock returns the Bedrock configuration
func (c *Config) GetBedrock() BedrockConfig {
	return BedrockConfig{
		Region:      c.GetString("bedrock.region"),
		ModelID:     c.GetString("bedrock.model_id"),
		MaxTokens:   c.GetInt("bedrock.max_tokens"),
		Temperature: float32(c.GetFloat64("bedrock.temperature")),
		TopP:        float32(c.GetFloat64("bedrock.top_p")),
		MaxBodySize: c.GetInt("bedrock.max_body_size"),
	}
}

// GetStore returns the store configuration
func (c *Config) GetStore() StoreConfig {
	return StoreConfig{
		Type:       c.GetString("store.type"),
		SQLitePath: c.GetString("store.sqlite_path"),
		MySQLDSN:   c.GetString("store.mysql_dsn"),
	}
}

// GetMailgun returns the Mailgun configuration
func (c *Config) GetMailgun() MailgunConfig {
	return MailgunConfig{
		APIKey:     c.GetString("mailgun.api_key"),
		SigningKey: c.GetString("mailgun.signing_key"),
		Domain:     c.GetString("mailgun.domain"),
		APIBase:    c.GetString("mailgun.api_base"),
	}
}

// GetSMTP returns the SMTP relay configuration
func (c *Config) GetSMTP() SMTPConfig {
	return SMTPConfig{
		Address:  c.GetString("smtp.address"),
		Username: c.GetString("smtp.username"),
		Password: c.GetString("smtp.password"),
	}
}
