package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/tubestreak/internal/config"
	"github.com/hpungsan/tubestreak/internal/db"
	"github.com/hpungsan/tubestreak/internal/errors"
	"github.com/hpungsan/tubestreak/internal/extension"
	"github.com/hpungsan/tubestreak/internal/host"
	"github.com/hpungsan/tubestreak/internal/payload"
	"github.com/hpungsan/tubestreak/internal/share"
	"github.com/hpungsan/tubestreak/internal/web"
)

// newOpener builds the opener handed to the extension. Tests replace it.
var newOpener = func(cfg *config.Config) extension.Opener {
	return extension.DefaultOpener(cfg.FallbackCommand)
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(database *sql.DB, cfg *config.Config, latch *host.Latch) *cli.App {
	app := &cli.App{
		Name:    "tubestreak",
		Usage:   "Share handoff between the share extension and the app",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging"},
			&cli.StringFlag{Name: "log-level", Usage: "Log level (trace, debug, info, warn, error)"},
			&cli.StringFlag{Name: "log-format", Value: "text", Usage: "Log format: text|json"},
		},
		Before: processGlobalFlags,
		Commands: []*cli.Command{
			shareCmd(database, cfg),
			openCmd(cfg, latch),
			hostCmd(cfg, latch),
			statusCmd(cfg),
			encodeCmd(cfg),
			decodeCmd(cfg),
			backupCmd(database, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	// --item values are URLs and may contain commas
	app.DisableSliceFlagSeparator = true
	return app
}

// processGlobalFlags applies the logging flags. --log-level overrides --debug.
func processGlobalFlags(c *cli.Context) error {
	if c.Bool("debug") {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if l := c.String("log-level"); l != "" {
		lvl, err := logrus.ParseLevel(l)
		if err != nil {
			return outputError(errors.NewInvalidRequest(err.Error()))
		}
		logrus.SetLevel(lvl)
	}
	switch c.String("log-format") {
	case "json":
		logrus.SetFormatter(new(logrus.JSONFormatter))
	case "text", "":
	default:
		return outputError(errors.NewInvalidRequest("log-format must be text or json"))
	}
	return nil
}

// newExtension wires the extension side from config.
func newExtension(database *sql.DB, cfg *config.Config) (*extension.Extension, error) {
	codec, err := payload.NewCodec(cfg.Scheme)
	if err != nil {
		return nil, err
	}
	ext := &extension.Extension{
		Codec:       codec,
		Opener:      newOpener(cfg),
		GracePeriod: cfg.GracePeriod(),
		Completer: extension.CompleterFunc(func(r extension.Result) {
			logrus.WithFields(logrus.Fields{
				"event_id":   r.EventID,
				"dispatched": r.Dispatched,
			}).Debug("share request completed")
		}),
	}
	if database != nil && !cfg.BackupDisabled {
		ext.Backup = &db.BackupStore{DB: database, Key: cfg.BackupKey}
	}
	return ext, nil
}

// shareCmd creates the share command (extension role).
func shareCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "share",
		Usage: "Share an item with the app (reads plain text from stdin when no --item is given)",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "item", Aliases: []string{"i"}, Usage: "Attachment as TYPE=VALUE, e.g. public.url=https://... (repeatable, in priority order)"},
			&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "Optional label"},
		},
		Action: func(c *cli.Context) error {
			attachments, err := parseItems(c.StringSlice("item"))
			if err != nil {
				return outputError(err)
			}
			if len(attachments) == 0 {
				if !stdinHasData() {
					return outputError(errors.NewInvalidRequest("provide --item or pipe text via stdin"))
				}
				text, err := readStdin()
				if err != nil {
					return outputError(errors.NewInternal(err))
				}
				attachments = append(attachments, share.TextAttachment(text))
			}

			ext, err := newExtension(database, cfg)
			if err != nil {
				return outputError(err)
			}
			result, err := ext.Handle(c.Context, attachments, c.String("label"))
			if err != nil {
				return outputError(err)
			}

			return outputJSON(result)
		},
	}
}

// openCmd creates the open command, the handler the OS invokes for the
// scheme. A running host receives the address over its socket; otherwise
// this process becomes the host, launched for the address.
func openCmd(cfg *config.Config, latch *host.Latch) *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Hand a share address to the app, starting it if needed",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one address is required"))
			}
			address := c.Args().First()

			err := web.NewClient(cfg.SocketPath).Forward(c.Context, address)
			if err == nil {
				logrus.WithField("path", cfg.SocketPath).Debug("address forwarded to running host")
				return outputJSON(map[string]any{"forwarded": true})
			}
			if !errors.Is(err, errors.ErrHostUnavailable) {
				return outputError(err)
			}

			logrus.Debug("no running host; starting one")
			forwarded, err := hostOrForward(c.Context, cfg, latch, address)
			if err != nil {
				return outputError(err)
			}
			if forwarded {
				return outputJSON(map[string]any{"forwarded": true})
			}
			return nil
		},
	}
}

// hostCmd creates the host command (host role).
func hostCmd(cfg *config.Config, latch *host.Latch) *cli.Command {
	return &cli.Command{
		Name:  "host",
		Usage: "Run the app host; prints each received share as a JSON line",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "launch-address", Usage: "Address the host was launched for (cold start)"},
		},
		Action: func(c *cli.Context) error {
			if err := runHost(c.Context, cfg, latch, host.StaticLaunch(c.String("launch-address"))); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// statusCmd creates the status command.
func statusCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the delivery state of the running host",
		Action: func(c *cli.Context) error {
			status, err := web.NewClient(cfg.SocketPath).Status(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(status)
		},
	}
}

// encodeCmd creates the encode command.
func encodeCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "encode",
		Usage: "Encode a URL and label into a share address",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Aliases: []string{"u"}, Required: true, Usage: "Absolute URI"},
			&cli.StringFlag{Name: "label", Aliases: []string{"l"}, Usage: "Optional label"},
		},
		Action: func(c *cli.Context) error {
			codec, err := payload.NewCodec(cfg.Scheme)
			if err != nil {
				return outputError(err)
			}
			p, err := payload.New(c.String("url"), c.String("label"))
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"address": codec.Encode(*p),
				"payload": p,
			})
		},
	}
}

// decodeCmd creates the decode command.
func decodeCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a share address",
		ArgsUsage: "<address>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("exactly one address is required"))
			}
			codec, err := payload.NewCodec(cfg.Scheme)
			if err != nil {
				return outputError(err)
			}
			p, err := codec.Parse(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			return outputJSON(p)
		},
	}
}

// backupCmd creates the backup command and its subcommands.
func backupCmd(database *sql.DB, cfg *config.Config) *cli.Command {
	requireStore := func() error {
		if database == nil || cfg.BackupDisabled {
			return outputError(errors.NewInvalidRequest("backup store is disabled"))
		}
		return nil
	}
	return &cli.Command{
		Name:  "backup",
		Usage: "Inspect the shared backup record",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Show the last address the extension dispatched",
				Action: func(c *cli.Context) error {
					if err := requireStore(); err != nil {
						return err
					}
					b, err := db.GetBackup(c.Context, database, cfg.BackupKey)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{
						"backup_key": b.Key,
						"address":    b.Address,
						"event_id":   b.EventID,
						"saved_at":   b.SavedTime().UTC().Format(time.RFC3339),
					})
				},
			},
			{
				Name:  "clear",
				Usage: "Remove the backup record",
				Action: func(c *cli.Context) error {
					if err := requireStore(); err != nil {
						return err
					}
					cleared, err := db.ClearBackup(c.Context, database, cfg.BackupKey)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(map[string]any{"cleared": cleared, "backup_key": cfg.BackupKey})
				},
			},
		},
	}
}

// runHost runs the host until interrupted: the local endpoint, the warm
// listener and the launch query. Each delivered share is written to stdout
// as one JSON line.
func runHost(ctx context.Context, cfg *config.Config, latch *host.Latch, launch host.LaunchQuery) error {
	codec, err := payload.NewCodec(cfg.Scheme)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	enc := json.NewEncoder(os.Stdout)
	ing := host.New(host.Options{
		Codec:  codec,
		Launch: launch,
		Latch:  latch,
		Dedup:  host.NewDeduper(cfg.DedupWindow()),
		OnShare: func(url, label string) {
			_ = enc.Encode(deliveredShare{
				URL:        url,
				Label:      label,
				ReceivedAt: time.Now().UTC().Format(time.RFC3339),
			})
		},
	})

	ln, err := web.Listen(cfg.SocketPath)
	if err != nil {
		return err
	}

	events := make(chan string, 16)
	srv := web.NewServer(ing, events, Version)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return web.Serve(ctx, srv, ln)
	})
	g.Go(func() error {
		return ing.Run(ctx, events)
	})
	return g.Wait()
}

const (
	forwardRetries    = 5
	forwardRetryDelay = 50 * time.Millisecond
)

// hostOrForward runs a host launched for address. When another open bound
// the socket first, address is forwarded to that host instead and
// forwarded is true.
func hostOrForward(ctx context.Context, cfg *config.Config, latch *host.Latch, address string) (forwarded bool, err error) {
	err = runHost(ctx, cfg, latch, host.StaticLaunch(address))
	if !stderrors.Is(err, web.ErrHostRunning) {
		return false, err
	}
	logrus.WithField("path", cfg.SocketPath).Debug("another host started first; forwarding")
	if err := forwardWithRetry(ctx, web.NewClient(cfg.SocketPath), address); err != nil {
		return false, err
	}
	return true, nil
}

// forwardWithRetry forwards address, backing off while the host that just
// bound the socket is still coming up.
func forwardWithRetry(ctx context.Context, client *web.Client, address string) error {
	delay := forwardRetryDelay
	var lastErr error
	for attempt := 0; attempt < forwardRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		lastErr = client.Forward(ctx, address)
		if lastErr == nil || !errors.Is(lastErr, errors.ErrHostUnavailable) {
			return lastErr
		}
		logrus.WithError(lastErr).WithField("attempt", attempt+1).Debug("forward failed, will retry")
	}
	return lastErr
}

// deliveredShare is the JSON line the host prints per delivery.
type deliveredShare struct {
	URL        string `json:"url"`
	Label      string `json:"label,omitempty"`
	ReceivedAt string `json:"received_at"`
}

// Helper functions

// parseItems turns TYPE=VALUE flags into attachments.
func parseItems(items []string) ([]share.Attachment, error) {
	attachments := make([]share.Attachment, 0, len(items))
	for i, item := range items {
		typeID, value, ok := strings.Cut(item, "=")
		if !ok || strings.TrimSpace(typeID) == "" {
			return nil, errors.NewInvalidRequest(fmt.Sprintf("item %d: expected TYPE=VALUE, got %q", i, item))
		}
		attachments = append(attachments, share.RawAttachment(strings.TrimSpace(typeID), value))
	}
	return attachments, nil
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sErr *errors.ShareError
	if stderrors.As(err, &sErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, sErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
