package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"scrapemonitor/packages/config"
	"scrapemonitor/packages/domain"
	"scrapemonitor/packages/fetcher"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

// Options for a single proxied fetch. Proxy settings come from the same
// environment the monitor reads.
type Options struct {
	ID       int64  `short:"i" long:"id" description:"Catalog id to fetch" required:"true"`
	EnvFile  string `short:"e" long:"env-file" description:"Optional .env file to load before reading the environment" default:".env"`
	Template string `short:"t" long:"template" description:"Override TARGET_URL_TEMPLATE; must contain {id}"`
	Pretty   bool   `short:"p" long:"pretty" description:"Indent the JSON output"`
}

func (o *Options) Validate() error {
	if o.ID <= 0 {
		return fmt.Errorf("--id must be a positive integer, got %d", o.ID)
	}
	return nil
}

type output struct {
	Target         int64            `json:"target"`
	URL            string           `json:"url"`
	HTTPStatus     int              `json:"http_status"`
	ResponseTimeMs int64            `json:"response_time_ms"`
	Blocked        bool             `json:"blocked"`
	BlockType      domain.BlockType `json:"block_type"`
	Error          *string          `json:"error"`
	BodyPreview    string           `json:"body_preview"`
}

func main() {
	opts := &Options{}
	parser := flags.NewParser(opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if err := opts.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	if opts.EnvFile != "" {
		_ = godotenv.Load(opts.EnvFile)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fc := cfg.FetcherConfig()
	if opts.Template != "" {
		fc.TargetURLTemplate = opts.Template
	}

	client, err := fetcher.New(fc)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target := domain.Target(opts.ID)
	res := client.Fetch(ctx, target)

	out := output{
		Target:         opts.ID,
		URL:            client.TargetURL(target),
		HTTPStatus:     res.HTTPStatus,
		ResponseTimeMs: res.ResponseTimeMs(),
		Blocked:        res.Blocked,
		BlockType:      res.BlockType,
		BodyPreview:    res.BodyPreview(500),
	}
	if res.Error != "" {
		out.Error = &res.Error
	}

	enc := json.NewEncoder(os.Stdout)
	if opts.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(out); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
