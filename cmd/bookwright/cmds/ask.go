package cmds

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-go-golems/bookwright/pkg/assistant"
	"github.com/go-go-golems/bookwright/pkg/classifier"
	"github.com/go-go-golems/bookwright/pkg/config"
	"github.com/go-go-golems/bookwright/pkg/events"
	"github.com/go-go-golems/bookwright/pkg/fields"
	"github.com/go-go-golems/bookwright/pkg/typewriter"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"
)

const tapTopic = "bookwright.events"

func NewAskCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask PROMPT",
		Short: "Run a single assistant turn and print the resulting book card",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.FromViper(viper.GetViper())
			if err != nil {
				return err
			}
			formFile, _ := cmd.Flags().GetString("form")
			tap, _ := cmd.Flags().GetBool("tap")
			verbose := viper.GetBool("verbose")

			initial, err := loadForm(formFile, settings.Fields)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			isTTY := false
			if f, ok := out.(*os.File); ok {
				isTTY = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
			}

			return runAsk(cmd.Context(), askOptions{
				settings: settings,
				creds:    config.NewViperCredentialStore(viper.GetViper()),
				prompt:   strings.Join(args, " "),
				initial:  initial,
				out:      out,
				trace:    cmd.ErrOrStderr(),
				tap:      tap,
				verbose:  verbose,
				animate:  isTTY,
			})
		},
	}
	cmd.Flags().String("form", "", "YAML file with the initial book card")
	cmd.Flags().Bool("tap", false, "Print the raw event trace to stderr")
	return cmd
}

type askOptions struct {
	settings *config.Settings
	creds    assistant.CredentialStore
	dialer   assistant.Dialer
	prompt   string
	initial  fields.Map
	out      io.Writer
	trace    io.Writer
	tap      bool
	verbose  bool
	// animate reveals text at the typewriter rate, otherwise it is printed
	// as soon as it arrives
	animate bool
}

func runAsk(ctx context.Context, o askOptions) error {
	form := fields.NewMemory(o.initial)
	surface := newStreamSurface(o.out)

	cfg := o.settings.AssistantConfig()
	scheduler := o.settings.Scheduler()
	if !o.animate {
		cfg.RevealFraction = 1
		scheduler = typewriter.NewFrameScheduler(time.Millisecond)
	}

	results := make(chan assistant.TurnResult, 1)
	options := []assistant.Option{
		assistant.WithScheduler(scheduler),
		assistant.WithNotifier(assistant.LogNotifier{}),
		assistant.WithTurnFinished(func(r assistant.TurnResult) {
			select {
			case results <- r:
			default:
			}
		}),
	}
	if o.dialer != nil {
		options = append(options, assistant.WithDialer(o.dialer))
	}

	var router *events.EventRouter
	if o.tap {
		var err error
		router, err = events.NewEventRouter(events.WithVerbose(o.verbose))
		if err != nil {
			return errors.Wrap(err, "could not create event router")
		}
		defer func() {
			_ = router.Close()
		}()
		router.AddHandler("transcript-printer", tapTopic, events.TranscriptPrinterFunc(o.trace))
		options = append(options, assistant.WithEventSink(events.NewWatermillSink(router.Publisher, tapTopic)))
	}

	c := assistant.New(cfg, o.creds, surface, form, options...)
	defer c.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)

	if router != nil {
		eg.Go(func() error {
			return router.Run(ctx)
		})
	}

	eg.Go(func() error {
		defer cancel()
		if router != nil {
			select {
			case <-router.Running():
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if err := c.Send(ctx, o.prompt, form.Snapshot()); err != nil {
			return err
		}

		select {
		case r := <-results:
			surface.finish()
			if r.Err != nil {
				return r.Err
			}
		case <-ctx.Done():
			c.Stop()
			return ctx.Err()
		}

		enc := yaml.NewEncoder(o.out)
		enc.SetIndent(2)
		if err := enc.Encode(form.Snapshot()); err != nil {
			return err
		}
		return enc.Close()
	})

	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// streamSurface prints blocks to a writer as they are revealed.
type streamSurface struct {
	mu       sync.Mutex
	w        io.Writer
	midBlock bool
}

var _ assistant.Surface = (*streamSurface)(nil)

type streamTarget struct {
	s *streamSurface
}

func (t streamTarget) Reveal(text string) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	_, _ = io.WriteString(t.s.w, text)
}

func newStreamSurface(w io.Writer) *streamSurface {
	return &streamSurface{w: w}
}

func (s *streamSurface) OpenBlock(kind classifier.BlockKind) typewriter.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case classifier.BlockReasoning:
		_, _ = io.WriteString(s.w, "thinking: ")
	default:
	}
	s.midBlock = true
	return streamTarget{s: s}
}

func (s *streamSurface) CloseBlock(kind classifier.BlockKind, target typewriter.Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.midBlock {
		_, _ = io.WriteString(s.w, "\n\n")
		s.midBlock = false
	}
}

func (s *streamSurface) LogPatch(field string, value fields.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if value.IsNull() {
		_, _ = fmt.Fprintf(s.w, "✎ %s cleared\n", fields.Label(field))
		return
	}
	_, _ = fmt.Fprintf(s.w, "✎ %s: %s\n", fields.Label(field), value.String())
}

func (s *streamSurface) SetRunning(bool) {}

func (s *streamSurface) Reset() {}

func (s *streamSurface) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.midBlock {
		_, _ = io.WriteString(s.w, "\n")
		s.midBlock = false
	}
	_, _ = io.WriteString(s.w, "---\n")
}
