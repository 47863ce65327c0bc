package config

const (
	defaultDataDir             = "~/.local/share/tweetloom"
	defaultLogDir              = "~/.local/share/tweetloom/logs"
	defaultPromptsDir          = "~/.config/tweetloom/prompts"
	defaultAPIBind             = "127.0.0.1:7533"
	defaultYouTubeBaseURL      = "https://youtube.googleapis.com/"
	defaultYouTubeTimeout      = 30
	defaultTranscriptionURL    = "http://127.0.0.1:9090/v1/transcripts"
	defaultTranscriptLanguage  = "en"
	defaultTranscriptTimeout   = 600
	defaultOpenAIBaseURL       = "https://api.openai.com/v1/chat/completions"
	defaultOpenAIModel         = "gpt-4o-mini"
	defaultOpenAITemperature   = 0.7
	defaultOpenAITimeout       = 120
	defaultTwitterBaseURL      = "https://api.twitter.com"
	defaultTwitterTimeout      = 30
	defaultPromptTemplate      = "default"
	defaultTweetCount          = 1
	defaultOutputLanguage      = "English"
	defaultLengthMode          = "range"
	defaultMinChars            = 80
	defaultMaxChars            = 280
	defaultIngestionInterval   = 30
	defaultPublishingInterval  = 60
	defaultItemsPerRun         = 5
	defaultMaxAttempts         = 3
	defaultBackoffBaseSeconds  = 60
	defaultStaleTimeoutMinutes = 10
	defaultInitialLookbackDays = 7
	defaultErrorRetryInterval  = 10
	defaultHeartbeatInterval   = 15
	defaultHeartbeatTimeout    = 120
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			PromptsDir: defaultPromptsDir,
			APIBind:    defaultAPIBind,
		},
		YouTube: YouTube{
			BaseURL:        defaultYouTubeBaseURL,
			TimeoutSeconds: defaultYouTubeTimeout,
		},
		Transcription: Transcription{
			BaseURL:        defaultTranscriptionURL,
			Language:       defaultTranscriptLanguage,
			TimeoutSeconds: defaultTranscriptTimeout,
		},
		OpenAI: OpenAI{
			BaseURL:        defaultOpenAIBaseURL,
			Model:          defaultOpenAIModel,
			Temperature:    defaultOpenAITemperature,
			TimeoutSeconds: defaultOpenAITimeout,
		},
		Twitter: Twitter{
			BaseURL:        defaultTwitterBaseURL,
			TimeoutSeconds: defaultTwitterTimeout,
		},
		Prompts: Prompts{
			Template:       defaultPromptTemplate,
			TweetCount:     defaultTweetCount,
			OutputLanguage: defaultOutputLanguage,
			LengthMode:     defaultLengthMode,
			MinChars:       defaultMinChars,
			MaxChars:       defaultMaxChars,
		},
		Scheduler: Scheduler{
			IngestionIntervalMinutes:  defaultIngestionInterval,
			PublishingIntervalMinutes: defaultPublishingInterval,
			ItemsPerRun:               defaultItemsPerRun,
			MaxAttempts:               defaultMaxAttempts,
			BackoffBaseSeconds:        defaultBackoffBaseSeconds,
			StaleTimeoutMinutes:       defaultStaleTimeoutMinutes,
			InitialLookbackDays:       defaultInitialLookbackDays,
			ErrorRetryInterval:        defaultErrorRetryInterval,
			HeartbeatInterval:         defaultHeartbeatInterval,
			HeartbeatTimeout:          defaultHeartbeatTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
