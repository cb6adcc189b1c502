package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/helpcomp/finsight/analysis"
	"github.com/helpcomp/finsight/chat"
	"github.com/helpcomp/finsight/completion"
	"github.com/helpcomp/finsight/config"
	"github.com/helpcomp/finsight/prom"
	"github.com/helpcomp/finsight/report"
	"github.com/helpcomp/finsight/server"
	"github.com/helpcomp/finsight/transactions"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/version"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const AppName = "finsight"
const AppDesc = "Upload a bank statement CSV and get AI-categorized spending, insights, a PDF report and a chat about your finances."

var cli struct {
	MetricsPath      string `env:"EXPORTER_METRICS_PATH" help:"${env} - Path under which to expose metrics" default:"/metrics"`
	ConfigPath       string `env:"CONFIG_PATH" help:"${env} - Path to config file" default:"./config.yml"`
	ListenAddress    string `env:"LISTEN_ADDRESS" help:"${env} - Port to listen on for the web interface" default:"5000"`
	UploadDir        string `env:"UPLOAD_DIR" help:"${env} - Directory for uploaded statements" default:"uploads"`
	GroqAPIKey       string `env:"GROQ_API_KEY" help:"${env} - API Key for Groq. Requests fail if neither this nor an Azure key is set"`
	OpenAIBaseURL    string `env:"OPENAI_BASE_URL" help:"${env} - OpenAI-compatible API base URL" default:"${groq_base_url}"`
	AzureAIAPIKey    string `env:"AZURE_API_KEY" help:"${env} - API Key for Azure OpenAI. Takes precedence over Groq when set"`
	AzureEndpoint    string `env:"AZURE_ENDPOINT" help:"${env} - Azure OpenAI Endpoint"`
	LogLevel         string `env:"LOG_LEVEL" help:"${env} - Log level (trace, debug, info, warn, error)" default:"info"`
	EnablePrometheus bool   `env:"ENABLE_PROMETHEUS" help:"${env} - Enable Prometheus metrics" default:"true"`
}

func main() {
	// Variable Setup //
	///////////////////
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Could not load .env file")
	}
	kong.Parse(&cli,
		kong.Name(AppName),
		kong.Description(AppDesc),
		kong.Vars{"groq_base_url": completion.GroqBaseURL},
	)
	log.Logger = log.Output(os.Stderr).With().Caller().Logger() // Logger
	level, err := zerolog.ParseLevel(cli.LogLevel)
	if err != nil {
		log.Warn().Str("level", cli.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	cfg, err := config.InitConfig(cli.ConfigPath) // Config
	if err != nil {
		log.Fatal().Err(err).Str("path", cli.ConfigPath).Msg("Invalid config")
	}
	loader, err := transactions.NewLoader(cli.UploadDir) // Uploads
	if err != nil {
		log.Fatal().Err(err).Msg("Could not create upload directory")
	}

	// AI Setup //
	/////////////
	if cli.AzureAIAPIKey != "" && cli.AzureEndpoint == "" {
		log.Error().Msg("Azure Endpoint is required if Azure API Key is provided")
	}
	if cli.GroqAPIKey == "" && cli.AzureAIAPIKey == "" {
		log.Warn().Msg("GROQ_API_KEY is not set; analysis and chat requests will fail")
	}
	client := completion.New(completion.Options{
		APIKey:        cli.GroqAPIKey,
		BaseURL:       cli.OpenAIBaseURL,
		AzureAPIKey:   cli.AzureAIAPIKey,
		AzureEndpoint: cli.AzureEndpoint,
	})
	analyzer := analysis.NewAnalyzer(client, cfg)

	opts := server.Options{
		Loader:   loader,
		Analyzer: analyzer,
		Chat:     chat.NewResponder(client, cfg),
		Reports:  report.NewRenderer(cfg.Report.Title),
	}

	// Metric Registration
	metricsPath := ""
	if cli.EnablePrometheus && cli.MetricsPath != "/" && cli.MetricsPath != "" {
		metricsPath = cli.MetricsPath
		opts.Requests = prom.NewRequestCounter(AppName)
		prometheus.MustRegister(
			versioncollector.NewCollector(AppName),
			prom.NewExporter(AppName, client, analyzer),
			opts.Requests,
		)
		opts.Metrics = promhttp.Handler()
		opts.MetricsPath = metricsPath
	} else {
		log.Info().Msg("Prometheus metrics are disabled.")
	}

	landingPage, err := server.NewLandingPage(AppName, AppDesc, metricsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	opts.Landing = landingPage

	// Start //
	///////////
	log.Logger.Info().
		Str("version", version.Info()).
		Msg("Starting " + AppName)

	// Create a channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	log.Info().Msgf("Starting HTTP server on listen address :%s and metric path %s", cli.ListenAddress, metricsPath)

	srv := &http.Server{
		Addr:         ":" + cli.ListenAddress,
		Handler:      server.New(opts).Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // analysis waits on the model
		IdleTimeout:  60 * time.Second,
	}

	// Listen and serve
	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Error starting HTTP server")
			sigChan <- syscall.SIGTERM
		}
	}()

	// Handle shutdown
	<-sigChan
	log.Info().Msg("Shutdown Signal Received")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	log.Info().Msg("Shutting down HTTP server...")
	_ = srv.Shutdown(ctx)
	log.Info().Msg("Shutdown Complete; Exiting...")
}
