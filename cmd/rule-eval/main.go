package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"
	"time"

	"github.com/supamail/supamail-gateway/internal/config"
	"github.com/supamail/supamail-gateway/internal/core"
	"github.com/supamail/supamail-gateway/internal/factory"
	"github.com/supamail/supamail-gateway/internal/logging"
	"github.com/supamail/supamail-gateway/internal/utils"
	"go.uber.org/zap"
)

var (
	// LLM provider flags
	provider    = flag.String("provider", "openai", "LLM provider (bedrock, gemini, openai)")
	maxTokens   = flag.Int("max-tokens", 256, "Maximum tokens for LLM response")
	temperature = flag.Float64("temperature", 0.1, "Temperature for LLM generation")
	topP        = flag.Float64("top-p", 0.9, "Top-p for LLM generation")
	maxBodySize = flag.Int("max-body-size", 4096, "Maximum email body size to send to LLM")

	// Bedrock flags
	bedrockRegion  = flag.String("bedrock-region", "us-east-1", "AWS region for Bedrock")
	bedrockModelID = flag.String("bedrock-model", "anthropic.claude-v2", "Bedrock model ID")

	// Gemini flags
	geminiAPIKey    = flag.String("gemini-api-key", "", "API key for Google Gemini")
	geminiModelName = flag.String("gemini-model", "gemini-pro", "Gemini model name")

	// OpenAI flags
	openaiAPIKey    = flag.String("openai-api-key", "", "API key for OpenAI")
	openaiModelName = flag.String("openai-model", "gpt-4o-mini", "OpenAI model name")

	// Rule flags
	rulesArg = flag.String("rules", "", "Comma-separated rules, each action:type:pattern (e.g. block:domain:spam.com)")
	skipLLM  = flag.Bool("skip-llm", false, "Skip classification and evaluate rules with -category only")
	category = flag.String("category", "", "Category to evaluate when classification is skipped")

	// Input flags
	inputFile  = flag.String("file", "", "Input email file (use stdin if not specified)")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	jsonLog    = flag.Bool("json-log", false, "Output logs in JSON format")
	configFile = flag.String("config", "", "Path to config file (overrides command line flags)")
)

func main() {
	flag.Parse()

	var cfg *config.Config
	var err error

	// Initialize logger
	logger, err := logging.InitConsoleLogger(*verbose, *jsonLog)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration from file if specified
	if *configFile != "" {
		cfg, err = config.New()
		if err != nil {
			logger.Fatal("Failed to load configuration", zap.Error(err))
		}
		logger.Info("Loaded configuration from file", zap.String("file", cfg.GetViper().ConfigFileUsed()))
	} else {
		// Create config from command line flags
		cfg = createConfigFromFlags()
	}

	// Parse rules
	rules, err := parseRules(*rulesArg)
	if err != nil {
		logger.Fatal("Failed to parse rules", zap.Error(err))
	}

	// Read email from file or stdin
	var emailReader io.Reader
	if *inputFile != "" {
		file, err := os.Open(*inputFile)
		if err != nil {
			logger.Fatal("Failed to open input file", zap.Error(err), zap.String("file", *inputFile))
		}
		defer file.Close()
		emailReader = file
		logger.Info("Reading email from file", zap.String("file", *inputFile))
	} else {
		emailReader = os.Stdin
		logger.Info("Reading email from stdin")
	}

	// Parse email
	msg, err := mail.ReadMessage(bufio.NewReader(emailReader))
	if err != nil {
		logger.Fatal("Failed to parse email", zap.Error(err))
	}

	from := msg.Header.Get("From")
	subject := msg.Header.Get("Subject")

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		logger.Fatal("Failed to read email body", zap.Error(err))
	}
	body := string(bodyBytes)

	// Print email summary
	fmt.Printf("\n=== Email Summary ===\n")
	fmt.Printf("From: %s\n", from)
	fmt.Printf("Subject: %s\n", subject)
	fmt.Printf("Body length: %d bytes\n", len(body))
	fmt.Printf("Rules: %d\n", len(rules))
	fmt.Printf("\n")

	startTime := time.Now()

	// Classify, or take the category from the command line
	var cls *core.Classification
	if *skipLLM {
		cls = &core.Classification{
			Summary:         "(classification skipped)",
			Category:        *category,
			EnhancedSubject: subject,
		}
	} else {
		classifierFactory := factory.NewClassifierFactory(cfg, logger, utils.NewTextProcessor(logger))
		classifier, err := classifierFactory.CreateClassifier()
		if err != nil {
			logger.Fatal("Failed to create classifier", zap.Error(err))
		}
		fmt.Printf("=== Classification ===\n")
		fmt.Printf("Provider: %s\n", cfg.GetString("llm.provider"))

		cls, err = classifier.Classify(context.Background(), subject, body)
		if err != nil {
			logger.Fatal("Failed to classify email", zap.Error(err))
		}
	}

	disp := core.Decide(from, cls.Category, rules)
	duration := time.Since(startTime)

	// Print results
	fmt.Printf("\n=== Results ===\n")
	fmt.Printf("Category: %s\n", cls.Category)
	fmt.Printf("Summary: %s\n", cls.Summary)
	fmt.Printf("Action: %s\n", disp.Action)
	if disp.MatchedRule != nil {
		fmt.Printf("Matched rule: %s %s %q\n", disp.MatchedRule.Action, disp.MatchedRule.Type, disp.MatchedRule.Pattern)
	} else {
		fmt.Printf("Matched rule: none (default allow)\n")
	}
	fmt.Printf("Processing time: %v\n", duration)
}

// parseRules turns "action:type:pattern,..." into rules ordered as given
func parseRules(arg string) ([]core.Rule, error) {
	if arg == "" {
		return nil, nil
	}

	var rules []core.Rule
	base := time.Now()
	for i, spec := range strings.Split(arg, ",") {
		parts := strings.SplitN(strings.TrimSpace(spec), ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed rule %q, expected action:type:pattern", spec)
		}

		action := core.RuleAction(strings.ToLower(parts[0]))
		if action != core.ActionAllow && action != core.ActionBlock {
			return nil, fmt.Errorf("unknown action %q in rule %q", parts[0], spec)
		}
		ruleType := core.RuleType(strings.ToLower(parts[1]))
		if ruleType != core.RuleTypeEmail && ruleType != core.RuleTypeDomain && ruleType != core.RuleTypeCategory {
			return nil, fmt.Errorf("unknown type %q in rule %q", parts[1], spec)
		}

		rules = append(rules, core.Rule{
			ID:        fmt.Sprintf("cli-%d", i),
			Pattern:   parts[2],
			Type:      ruleType,
			Action:    action,
			CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return rules, nil
}

// createConfigFromFlags creates a configuration from command line flags
func createConfigFromFlags() *config.Config {
	v := config.NewEmptyViper()

	// Set LLM provider
	v.Set("llm.provider", *provider)

	// Set provider-specific configuration
	switch *provider {
	case "bedrock":
		v.Set("bedrock.region", *bedrockRegion)
		v.Set("bedrock.model_id", *bedrockModelID)
		v.Set("bedrock.max_tokens", *maxTokens)
		v.Set("bedrock.temperature", *temperature)
		v.Set("bedrock.top_p", *topP)
		v.Set("bedrock.max_body_size", *maxBodySize)
	case "gemini":
		v.Set("gemini.api_key", *geminiAPIKey)
		v.Set("gemini.model_name", *geminiModelName)
		v.Set("gemini.max_tokens", *maxTokens)
		v.Set("gemini.temperature", *temperature)
		v.Set("gemini.top_p", *topP)
		v.Set("gemini.max_body_size", *maxBodySize)
	case "openai":
		v.Set("openai.api_key", *openaiAPIKey)
		v.Set("openai.model_name", *openaiModelName)
		v.Set("openai.max_tokens", *maxTokens)
		v.Set("openai.temperature", *temperature)
		v.Set("openai.top_p", *topP)
		v.Set("openai.max_body_size", *maxBodySize)
	}

	return config.NewFromViper(v)
}
