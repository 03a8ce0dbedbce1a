// Command scribe transcribes speech audio from local files or platform
// URLs, or serves the same operations over HTTP.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillsenselab/scribe/asr"
	"github.com/skillsenselab/scribe/config"
	"github.com/skillsenselab/scribe/logger"
	"github.com/skillsenselab/scribe/server"
	"github.com/skillsenselab/scribe/service"
	"github.com/skillsenselab/scribe/transcript"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to config.yaml")
		provider   = flag.String("provider", "", "override the configured provider (whispercpp, bcut, kuaishou)")
		url        = flag.String("url", "", "platform URL to download and transcribe")
		file       = flag.String("file", "", "local audio file to transcribe")
		download   = flag.String("download", "", "download only: audio or video (requires -url)")
		serve      = flag.Bool("serve", false, "run the HTTP server")
		asJSON     = flag.Bool("json", false, "print the full transcript as JSON instead of plain text")
		quiet      = flag.Bool("quiet", false, "suppress progress output")
	)
	flag.Parse()

	var opts []config.LoaderOption
	if *configFile != "" {
		opts = append(opts, config.WithConfigFile(*configFile))
	}

	var cfg config.Config
	if err := config.Load(&cfg, opts...); err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyDefaults()
	if *provider != "" {
		cfg.Provider = *provider
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(&cfg.Logging, "scribe")

	svc, err := service.New(&cfg, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *serve:
		runServer(ctx, &cfg, svc, log)
	case *download != "" && *url != "":
		runDownload(ctx, svc, *download, *url)
	case *url != "" || *file != "":
		runTranscribe(ctx, svc, *url, *file, *asJSON, *quiet)
	default:
		flag.Usage()
		os.Exit(2)
	}
}

func runServer(ctx context.Context, cfg *config.Config, svc *service.Orchestrator, log *logger.Logger) {
	srv := server.New(cfg.Server, svc, log)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}
}

func runDownload(ctx context.Context, svc *service.Orchestrator, kind, url string) {
	var path string
	var err error
	switch kind {
	case "audio":
		path, err = svc.DownloadAudio(ctx, url)
	case "video":
		path, err = svc.DownloadVideo(ctx, url)
	default:
		fmt.Fprintf(os.Stderr, "scribe: -download must be audio or video, got %q\n", kind)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(path)
}

func runTranscribe(ctx context.Context, svc *service.Orchestrator, url, file string, asJSON, quiet bool) {
	var onProgress asr.ProgressFunc
	if !quiet {
		onProgress = func(status asr.Status, percent int) {
			fmt.Fprintf(os.Stderr, "%s %d%%\n", status, percent)
		}
	}

	var result *transcript.Transcript
	var err error
	if url != "" {
		result, err = svc.ProcessURL(ctx, url, onProgress)
	} else {
		result, err = svc.Transcribe(ctx, file, onProgress)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
		os.Exit(1)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintf(os.Stderr, "scribe: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Println(result.FullText)
}
