package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/go-pkgz/lgr"
	"github.com/jessevdk/go-flags"

	"github.com/genewire/genewire/pkg/config"
	"github.com/genewire/genewire/pkg/content"
	"github.com/genewire/genewire/pkg/digest"
	"github.com/genewire/genewire/pkg/email"
	"github.com/genewire/genewire/pkg/llm"
	"github.com/genewire/genewire/pkg/repository"
	"github.com/genewire/genewire/pkg/scheduler"
	"github.com/genewire/genewire/pkg/search"
	"github.com/genewire/genewire/server"
)

// Opts with all CLI options
type Opts struct {
	Config string `short:"f" long:"config" env:"CONFIG" default:"config.yml" description:"config file path"`

	// Common options
	Debug   bool `long:"dbg" env:"DEBUG" description:"debug mode"`
	Version bool `short:"V" long:"version" description:"show version info"`
	NoColor bool `long:"no-color" env:"NO_COLOR" description:"disable color output"`
}

var revision = "unknown"

func main() {
	var opts Opts
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if opts.Version {
		fmt.Printf("Version: %s\nGolang: %s\n", revision, runtime.Version())
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Printf("[ERROR] can't load config: %v", err)
		os.Exit(1)
	}

	setupLog(opts.Debug, cfg.LLM.APIKey, cfg.Email.Password, cfg.Search.GoogleAPIKey)

	log.Printf("[INFO] starting genewire version %s", revision)

	ctx, cancel := context.WithCancel(context.Background())

	// handle termination signals
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		log.Print("[INFO] termination signal received")
		cancel()
	}()

	if err := run(ctx, cfg, opts.Debug); err != nil {
		cancel()
		log.Printf("[ERROR] %v", err)
		os.Exit(1)
	}

	cancel()
	log.Print("[INFO] shutdown complete")
}

// run wires the pipeline together and blocks until the context is canceled
func run(ctx context.Context, cfg *config.Config, debug bool) error {
	repos, err := repository.NewRepositories(ctx, repository.Config{
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetime) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer func() {
		if e := repos.Close(); e != nil {
			log.Printf("[WARN] can't close database: %v", e)
		}
	}()

	generator := llm.NewGenerator(cfg.GetLLMConfig())
	searcher := search.NewSearcher(repos.Site, repos.Setting, cfg.GetSearchConfig())

	var extractor digest.ContentExtractor
	if cfg.Extraction.Enabled {
		extractor = content.NewHTTPExtractor(cfg.GetExtractionConfig())
	}

	var emailer digest.Emailer
	if cfg.Email.Enabled {
		emailer = email.NewSender(cfg.GetEmailConfig(), repos.Recipient)
	} else {
		log.Print("[INFO] email delivery disabled")
	}

	digestSvc := digest.NewService(searcher, repos.Article, repos.Summary, repos.Comparison,
		generator, emailer, extractor)
	engine := digest.NewEngine(repos.Comparison, repos.Article, repos.Summary, repos.Setting,
		generator, cfg.GetLLMConfig())

	sched := scheduler.New(digestSvc, scheduler.Config{
		DigestCron:    cfg.Schedule.DigestCron,
		CleanupCron:   cfg.Schedule.CleanupCron,
		RetentionDays: cfg.Schedule.RetentionDays,
	})
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	srv := server.New(server.Deps{
		Config:     cfg,
		Searcher:   searcher,
		Digests:    digestSvc,
		Engine:     engine,
		Feedback:   repos.Feedback,
		Summaries:  repos.Summary,
		Recipients: repos.Recipient,
		Sites:      repos.Site,
		Settings:   repos.Setting,
	}, revision, debug)

	if err := srv.Run(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func setupLog(dbg bool, secs ...string) {
	logOpts := []lgr.Option{lgr.Out(os.Stdout), lgr.Err(os.Stderr)}
	if dbg {
		logOpts = []lgr.Option{lgr.Debug, lgr.Msec, lgr.LevelBraces, lgr.StackTraceOnError}
	}

	colorizer := lgr.Mapper{
		ErrorFunc:  func(s string) string { return color.New(color.FgHiRed).Sprint(s) },
		WarnFunc:   func(s string) string { return color.New(color.FgRed).Sprint(s) },
		InfoFunc:   func(s string) string { return color.New(color.FgYellow).Sprint(s) },
		DebugFunc:  func(s string) string { return color.New(color.FgWhite).Sprint(s) },
		CallerFunc: func(s string) string { return color.New(color.FgBlue).Sprint(s) },
		TimeFunc:   func(s string) string { return color.New(color.FgCyan).Sprint(s) },
	}
	logOpts = append(logOpts, lgr.Map(colorizer))

	secrets := make([]string, 0, len(secs))
	for _, s := range secs {
		if s != "" {
			secrets = append(secrets, s)
		}
	}
	if len(secrets) > 0 {
		logOpts = append(logOpts, lgr.Secret(secrets...))
	}
	lgr.SetupStdLogger(logOpts...)
	lgr.Setup(logOpts...)
}
