package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"github.com/w-h-a/medimate"
	"github.com/w-h-a/medimate/memory"
	"github.com/w-h-a/medimate/server"
	httpserver "github.com/w-h-a/medimate/server/http"
	"github.com/w-h-a/medimate/util/apperr"
)

var (
	cli struct {
		Providers `embed:""`

		// Answering config
		SystemPrompt string        `help:"System prompt for the assistant" default:"" env:"MEDIMATE_SYSTEM_PROMPT"`
		Context      int           `help:"Number of conversation turns to send to the model" default:"6" env:"MEDIMATE_CONTEXT"`
		TopK         int           `help:"Number of prescription chunks to retrieve" default:"4" env:"MEDIMATE_TOP_K"`
		Timeout      time.Duration `help:"Timeout for model calls" default:"30s" env:"MEDIMATE_TIMEOUT"`
		CacheTTL     time.Duration `help:"Lifetime of cached safety reports" default:"24h" env:"MEDIMATE_CACHE_TTL"`
		LogLevel     string        `help:"Log level (debug, info, warn, error)" default:"info" env:"MEDIMATE_LOG_LEVEL"`

		Serve serveCmd `cmd:"" help:"Serve the HTTP API."`
		Chat  chatCmd  `cmd:"" help:"Upload a prescription and chat about it in the terminal."`
		Drugs drugsCmd `cmd:"" help:"List or search the over-the-counter reference drugs."`
	}
)

type serveCmd struct {
	Address        string        `help:"Listen address" default:":8080" env:"MEDIMATE_ADDRESS"`
	MaxUploadBytes int64         `help:"Largest accepted upload" default:"10485760" env:"MEDIMATE_MAX_UPLOAD_BYTES"`
	WriteTimeout   time.Duration `help:"Longest time spent answering one request" default:"2m" env:"MEDIMATE_WRITE_TIMEOUT"`
}

func (c *serveCmd) Run(kit *medimate.Kit) error {
	srv := httpserver.NewServer(
		kit,
		server.WithAddress(c.Address),
		server.WithMaxUploadBytes(c.MaxUploadBytes),
		server.WithWriteTimeout(c.WriteTimeout),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sig:
		slog.Info("shutting down")
		return srv.Stop(context.Background())
	}
}

type chatCmd struct {
	User string `help:"User identifier" default:"local" env:"MEDIMATE_USER"`
	File string `arg:"" help:"Prescription file to upload" type:"existingfile"`
}

func (c *chatCmd) Run(kit *medimate.Kit) error {
	ctx := context.Background()

	f, err := os.Open(c.File)
	if err != nil {
		return err
	}
	defer f.Close()

	up, err := kit.Upload(ctx, c.User, filepath.Base(c.File), f)
	if err != nil {
		return fmt.Errorf("%s", apperr.SafeMessage(err, "upload failed"))
	}

	if up.Existing {
		fmt.Printf("✅ Reopened %s\n", up.Title)
	} else {
		fmt.Printf("✅ Uploaded %s\n", up.Title)
	}
	fmt.Println("Ask a question, /safety to check the medicines, or an empty line to quit.")

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Print("> ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		input = strings.TrimSpace(input)
		if len(input) == 0 {
			fmt.Println("Goodbye!")
			return nil
		}

		if input == "/safety" {
			report, err := kit.CheckSafety(ctx, up.SessionId)
			if err != nil {
				fmt.Println(apperr.SafeMessage(err, "safety check failed"))
				continue
			}
			printReport(report)
			continue
		}

		reply, err := kit.Ask(ctx, medimate.Question{
			SessionId: up.SessionId,
			Question:  input,
		})
		if err != nil {
			fmt.Println(apperr.SafeMessage(err, "could not answer"))
			continue
		}
		fmt.Printf("%s\n---\n", reply.Answer)
	}
}

func printReport(report memory.SafetyReport) {
	fmt.Println("Over the counter:")
	for _, v := range report.OTC {
		fmt.Printf("  • %s: %s\n", v.Name, v.Reason)
	}
	fmt.Println("Consult a doctor:")
	for _, v := range report.Consult {
		fmt.Printf("  • %s: %s\n", v.Name, v.Reason)
	}
}

type drugsCmd struct {
	Query string `arg:"" optional:"" help:"Search text"`
	Limit int    `help:"Maximum results" default:"20"`
}

func (c *drugsCmd) Run(kit *medimate.Kit) error {
	drugs, err := kit.SearchReferenceDrugs(context.Background(), c.Query, c.Limit)
	if err != nil {
		return err
	}

	for _, d := range drugs {
		fmt.Printf("%s (%s)\n", d.Name, d.Category())
	}

	return nil
}

func main() {
	_ = godotenv.Load()

	kctx := kong.Parse(&cli, kong.Name("medimate"), kong.Description("Prescription assistant."))

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level(cli.LogLevel)})))

	kctx.FatalIfErrorf(run(kctx))
}

// run owns the kit so it is closed on every return path.
func run(kctx *kong.Context) (err error) {
	kit, err := build()
	if err != nil {
		return err
	}

	ctx := context.Background()

	defer func() {
		if cerr := kit.Close(ctx); cerr != nil {
			slog.ErrorContext(ctx, "failed to close", "error", cerr)
			if err == nil {
				err = cerr
			}
		}
	}()

	if err := kit.Start(ctx); err != nil {
		return err
	}

	return kctx.Run(kit)
}

func build() (*medimate.Kit, error) {
	store, err := cli.memory()
	if err != nil {
		return nil, err
	}

	vectors, err := cli.vectors()
	if err != nil {
		return nil, err
	}

	gen, err := cli.generator()
	if err != nil {
		return nil, err
	}

	ext, err := cli.extractor()
	if err != nil {
		return nil, err
	}

	c, err := cli.cache()
	if err != nil {
		return nil, err
	}

	opts := []medimate.Option{
		medimate.WithContextLimit(cli.Context),
		medimate.WithTopK(cli.TopK),
		medimate.WithTimeout(cli.Timeout),
		medimate.WithCacheTTL(cli.CacheTTL),
	}
	if len(cli.SystemPrompt) > 0 {
		opts = append(opts, medimate.WithSystemPrompt(cli.SystemPrompt))
	}
	if c != nil {
		opts = append(opts, medimate.WithCache(c))
	}

	return medimate.New(store, vectors, gen, ext, opts...), nil
}

func level(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
