package extension

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"

	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tubestreak/internal/errors"
)

// Opener hands an address to whatever the OS routes the scheme to.
type Opener interface {
	Name() string
	Open(ctx context.Context, address string) error
}

// browserMu guards the package-level writers of pkg/browser.
var browserMu sync.Mutex

// BrowserOpener opens addresses through the desktop's default URL handler.
// The handler's output goes to Output, or to stderr when Output is nil.
// It must never reach stdout, which carries CLI results and the MCP stream.
type BrowserOpener struct {
	Output io.Writer
}

// Name implements Opener.
func (BrowserOpener) Name() string { return "default-handler" }

// Open implements Opener.
func (o BrowserOpener) Open(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := o.Output
	if out == nil {
		out = os.Stderr
	}

	browserMu.Lock()
	defer browserMu.Unlock()
	browser.Stdout, browser.Stderr = out, out
	return browser.OpenURL(address)
}

// CommandOpener runs Argv with the address appended as the last argument.
type CommandOpener struct {
	Argv []string
}

// Name implements Opener.
func (o CommandOpener) Name() string {
	if len(o.Argv) == 0 {
		return "command"
	}
	return "command:" + o.Argv[0]
}

// Open implements Opener.
func (o CommandOpener) Open(ctx context.Context, address string) error {
	if len(o.Argv) == 0 {
		return fmt.Errorf("no command configured")
	}
	args := append(append([]string{}, o.Argv[1:]...), address)
	cmd := exec.CommandContext(ctx, o.Argv[0], args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", o.Argv[0], err, out)
	}
	return nil
}

// ChainOpener tries each opener in order until one succeeds.
type ChainOpener []Opener

// Name implements Opener.
func (c ChainOpener) Name() string { return "chain" }

// Open implements Opener. When every opener fails the error is
// DISPATCH_TARGET_NOT_FOUND listing what was tried.
func (c ChainOpener) Open(ctx context.Context, address string) error {
	tried := make([]string, 0, len(c))
	for _, o := range c {
		if o == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		tried = append(tried, o.Name())
		err := o.Open(ctx, address)
		if err == nil {
			return nil
		}
		logrus.WithError(err).WithField("opener", o.Name()).Debug("opener failed, trying next")
	}
	return errors.NewDispatchTargetNotFound(tried)
}

// DefaultOpener returns the default handler followed by fallback, if any.
func DefaultOpener(fallback []string) Opener {
	chain := ChainOpener{BrowserOpener{}}
	if len(fallback) > 0 {
		chain = append(chain, CommandOpener{Argv: fallback})
	}
	return chain
}
