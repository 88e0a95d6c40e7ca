package main

import (
	"context"
	"fmt"
	"io"

	"github.com/smallnest/agentgraph/config"
	"github.com/smallnest/agentgraph/graph"
	"github.com/smallnest/agentgraph/llms"
	"github.com/smallnest/agentgraph/log"
	"github.com/smallnest/agentgraph/observability"
	"github.com/smallnest/agentgraph/store"
	"github.com/smallnest/agentgraph/tool"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// app holds what the subcommands share.
type app struct {
	in  io.Reader
	out io.Writer

	configPath string
	threadID   string
	offline    bool
	trace      bool

	cfg      *config.Config
	logger   log.Logger
	store    store.CheckpointStore
	tracer   *graph.Tracer
	shutdown []func(context.Context) error
}

func newRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:   "lessons",
		Short: "Run checkpointed agent graphs",
		Long: `lessons runs agent graphs on threads persisted in a checkpoint store.

Configuration is read from --config (YAML or JSON), .env and the environment.
Use --offline to run with canned model replies and search results.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd.Context())
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.close(cmd.Context())
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "config file (.yaml, .yml or .json)")
	flags.StringVarP(&a.threadID, "thread", "t", "1", "thread id")
	flags.BoolVar(&a.offline, "offline", false, "use canned model replies and search results")
	flags.BoolVar(&a.trace, "trace", false, "print OpenTelemetry spans to stdout")

	root.AddCommand(
		newReactCmd(a),
		newAgentCmd(a),
		newEssayCmd(a),
		newHistoryCmd(a),
		newReplayCmd(a),
		newDrawCmd(a),
	)
	return root
}

func (a *app) setup(ctx context.Context) error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger, err = cfg.Logger(); err != nil {
		return err
	}
	log.SetDefaultLogger(a.logger)

	if a.store, err = config.OpenStore(ctx, cfg.Store); err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	a.shutdown = append(a.shutdown, func(context.Context) error { return a.store.Close() })

	if a.trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(a.out), stdouttrace.WithPrettyPrint())
		if err != nil {
			return err
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		a.shutdown = append(a.shutdown, tp.Shutdown)

		hook, err := observability.NewOTelHook(observability.Config{TracerProvider: tp})
		if err != nil {
			return err
		}
		a.tracer = graph.NewTracer()
		a.tracer.AddHook(hook)
	}
	return nil
}

func (a *app) close(ctx context.Context) error {
	var first error
	for i := len(a.shutdown) - 1; i >= 0; i-- {
		if err := a.shutdown[i](ctx); err != nil && first == nil {
			first = err
		}
	}
	a.shutdown = nil
	return first
}

// compileOptions are shared by every graph the CLI builds.
func (a *app) compileOptions() []graph.CompileOption {
	opts := []graph.CompileOption{
		graph.WithCheckpointer(a.store),
		graph.WithLogger(a.logger),
		graph.WithRecursionLimit(a.cfg.Graph.RecursionLimit),
	}
	if a.tracer != nil {
		opts = append(opts, graph.WithTracer(a.tracer))
	}
	return opts
}

// runOptions print every step like a streamed run.
func (a *app) runOptions() []graph.RunOption {
	return []graph.RunOption{graph.WithListener(graph.StepListenerFunc(a.printStep))}
}

func (a *app) printStep(_ context.Context, e graph.StepEvent) {
	switch e.Event {
	case graph.NodeEventComplete:
		fmt.Fprintf(a.out, "[%s] %s\n", e.NodeName, summarize(e.Update))
	case graph.NodeEventInterrupt:
		fmt.Fprintf(a.out, "-- paused before %s (checkpoint %s)\n", e.NodeName, e.CheckpointID)
	}
}

func (a *app) model() (llms.ChatModel, error) {
	if a.offline {
		return offlineModel(), nil
	}
	return a.cfg.ChatModel()
}

func (a *app) searcher() (tool.SearchTool, error) {
	if a.offline {
		return offlineSearch{}, nil
	}
	return a.cfg.Searcher()
}

// summarize renders a node update on one line.
func summarize(update graph.State) string {
	if msgs, ok := update[graph.MessagesKey].([]graph.Message); ok {
		parts := make([]string, 0, len(msgs))
		for _, m := range msgs {
			parts = append(parts, formatMessage(m))
		}
		return fmt.Sprint(parts)
	}
	out := make(graph.State, len(update))
	for k, v := range update {
		if s, ok := v.(string); ok && len(s) > 80 {
			v = s[:77] + "..."
		}
		out[k] = v
	}
	return fmt.Sprint(out)
}

func formatMessage(m graph.Message) string {
	if m.HasToolCalls() {
		calls := make([]string, 0, len(m.ToolCalls))
		for _, c := range m.ToolCalls {
			calls = append(calls, fmt.Sprintf("%s(%v)#%s", c.Name, c.Args, c.ID))
		}
		return fmt.Sprintf("%s: calls %v", m.Role, calls)
	}
	return fmt.Sprintf("%s: %s", m.Role, m.Content)
}
