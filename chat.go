package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/embernet/tapestry-sub001/internal/ai"
	"github.com/embernet/tapestry-sub001/internal/ai/provider"
	"github.com/embernet/tapestry-sub001/internal/apperrors"
	"github.com/embernet/tapestry-sub001/internal/chat"
	"github.com/embernet/tapestry-sub001/internal/plan"
	"github.com/embernet/tapestry-sub001/internal/views"
)

const chatHelp = `Commands:
  /yes            apply the accepted actions of the last reply
  /no             decline every action of the last reply
  /toggle N       accept or decline action N
  /plan           show the current plan
  /run            execute or resume the plan in the background
  /pause          pause the plan after the current step
  /discard        drop the plan
  /graph          print the visible graph
  /view NAME      activate a saved view
  /new            start a new conversation
  /save           save the workspace
  /help           show this help
  /quit           save and exit
Anything else is sent to the model.`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the model about a workspace",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		gen, err := provider.New(cmd.Context(), a.cfg.AI, a.logger, a.metrics)
		if err != nil {
			return err
		}
		if err := openOrCreate(a, cmd.Flag("workspace").Value.String()); err != nil {
			return err
		}
		return runChat(cmd.Context(), a, gen, os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	f := chatCmd.Flags()
	f.String("workspace", "default", "Workspace to open (created when missing)")
	f.String("provider", "", "Model provider: gemini or openai")
	f.String("model", "", "Model name")
	f.String("mode", "", "Assistant mode: creative or strict")
}

func openOrCreate(a *app, name string) error {
	_, err := a.session.Switch(name)
	if !apperrors.IsNotFound(err) {
		return err
	}
	if _, err := a.meta.CreateWorkspace(name, ""); err != nil {
		return err
	}
	_, err = a.session.Switch(name)
	return err
}

// repl is one interactive chat. Plan runs happen in the background so the
// user can pause them.
type repl struct {
	a    *app
	chat *chat.Session
	out  io.Writer

	mu     sync.Mutex // guards out
	runs   errgroup.Group
	cancel context.CancelFunc
}

func newREPL(a *app, gen ai.Generator, out io.Writer) *repl {
	r := &repl{a: a, out: out}
	r.chat = chat.New(gen, a.store, a.dispatcher,
		chat.WithMode(chat.Mode(a.cfg.AI.Mode)),
		chat.WithLogger(a.logger.Named("chat")),
		chat.WithNotify(r.notify),
		chat.WithPlanOptions(
			plan.WithConfig(plan.Config{
				MaxRetries:  a.cfg.Plan.MaxRetries,
				BackoffBase: a.cfg.Plan.BackoffBase,
				SettleDelay: a.cfg.Plan.SettleDelay,
			}),
			plan.WithRecorder(a.metrics),
		),
	)
	return r
}

func runChat(ctx context.Context, a *app, gen ai.Generator, in io.Reader, out io.Writer) error {
	r := newREPL(a, gen, out)
	ctx, r.cancel = context.WithCancel(ctx)
	defer r.cancel()

	w, _ := a.session.Current()
	r.printf("Workspace %q. Type /help for commands.\n", w.Name)

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		r.printf("> ")
		var line string
		select {
		case <-ctx.Done():
			return r.stop()
		case l, ok := <-lines:
			if !ok {
				return r.stop()
			}
			line = l
		}
		if quit := r.handle(ctx, line); quit {
			return r.stop()
		}
		r.save()
	}
}

// stop pauses any running plan and waits for it to settle.
func (r *repl) stop() error {
	r.chat.Plan().Pause()
	err := r.runs.Wait()
	r.save()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *repl) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		r.say(ctx, line)
		return false
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true
	case "/help":
		r.printf("%s\n", chatHelp)
	case "/yes":
		r.resolve(r.chat.Confirm(ctx))
	case "/no":
		r.resolve(r.chat.Reject(ctx))
	case "/toggle":
		n, err := strconv.Atoi(arg)
		if err == nil {
			err = r.chat.Toggle(n - 1)
		}
		if err != nil {
			r.printf("Cannot toggle %q: %v\n", arg, err)
			return false
		}
		if m, ok := r.chat.Pending(); ok {
			r.printProposals(m)
		}
	case "/plan":
		r.printPlan()
	case "/run":
		r.run(ctx)
	case "/pause":
		r.chat.Plan().Pause()
		r.printf("Pausing after the current step.\n")
	case "/discard":
		r.chat.Plan().Discard()
		r.printf("Plan discarded.\n")
	case "/graph":
		r.printf("%s", views.Markdown(views.Visible(r.a.store)))
	case "/view":
		if !r.a.store.SetActiveView(arg) {
			r.printf("No view named %q.\n", arg)
			return false
		}
		r.printf("%s\n", views.TagSchema(r.a.store.ActiveView(), views.Visible(r.a.store)))
	case "/new":
		r.chat.Reset()
		r.printf("New conversation.\n")
	case "/save":
		if err := r.a.session.Save(); err != nil {
			r.printf("Save failed: %v\n", err)
			return false
		}
		r.printf("Saved.\n")
	default:
		r.printf("Unknown command %s. Type /help.\n", cmd)
	}
	return false
}

func (r *repl) say(ctx context.Context, text string) {
	reply, err := r.chat.Respond(ctx, text)
	if err != nil {
		r.printf("Error: %v\n", err)
		return
	}
	if reply.Text != "" {
		r.printf("%s\n", reply.Text)
	}
	if reply.Pending() {
		r.printProposals(reply)
		r.printf("Apply with /yes, decline with /no, flip one with /toggle N.\n")
	}
	if r.chat.Plan().Status() == plan.StatusProposed {
		r.printPlan()
		r.printf("Start it with /run.\n")
	}
}

func (r *repl) resolve(_ any, err error) {
	if errors.Is(err, chat.ErrNothingPending) {
		r.printf("Nothing to confirm.\n")
		return
	}
	if err != nil {
		r.printf("Error: %v\n", err)
	}
}

func (r *repl) run(ctx context.Context) {
	if r.chat.Plan().Running() {
		r.printf("The plan is already running.\n")
		return
	}
	r.runs.Go(func() error {
		status, err := r.chat.RunPlan(ctx)
		switch {
		case errors.Is(err, plan.ErrNoPlan):
			r.printf("There is no plan to run.\n")
			return nil
		case errors.Is(err, plan.ErrRunning):
			return nil
		case err != nil:
			r.a.logger.Warn("plan run stopped", zap.Error(err))
			return err
		}
		r.a.logger.Debug("plan run finished", zap.String("status", string(status)))
		r.save()
		return nil
	})
}

func (r *repl) notify(m chat.Message) {
	switch m.Kind {
	case chat.KindTool, chat.KindNotice:
		r.printf("%s\n", m.Text)
	}
}

func (r *repl) printProposals(m chat.Message) {
	for i, p := range m.Proposals {
		mark := "x"
		if !p.Accepted {
			mark = " "
		}
		r.printf("  %d. [%s] %s %s\n", i+1, mark, p.Call.Name, compactArgs(p.Call.Args))
	}
}

func (r *repl) printPlan() {
	steps := r.chat.Plan().Steps()
	if len(steps) == 0 {
		r.printf("No plan.\n")
		return
	}
	r.printf("Plan (%s):\n", r.chat.Plan().Status())
	for _, s := range steps {
		line := fmt.Sprintf("  %s. [%s] %s", s.ID, s.Status, s.Description)
		if len(s.Dependencies) > 0 {
			line += " (after " + strings.Join(s.Dependencies, ", ") + ")"
		}
		r.printf("%s\n", line)
	}
}

func (r *repl) save() {
	if err := r.a.session.Save(); err != nil {
		r.a.logger.Warn("autosave failed", zap.Error(err))
	}
}

func (r *repl) printf(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}

func compactArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for _, k := range slices.Sorted(maps.Keys(args)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, args[k]))
	}
	return strings.Join(parts, " ")
}
