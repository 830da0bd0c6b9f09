package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/martinemde/goalagent/agent"
	"github.com/martinemde/goalagent/config"
	"github.com/martinemde/goalagent/llm"
	"github.com/martinemde/goalagent/runlog"
	"github.com/martinemde/goalagent/telemetry"
)

const defaultInput = "Write a README for this project."

// newOracle builds the decision oracle. Tests replace it.
var newOracle = func(cfg config.OracleConfig, log logr.Logger) (agent.Oracle, error) {
	opts := []llm.GollmAdapterOption{
		llm.WithMaxTokens(cfg.MaxTokens),
		llm.WithTemperature(cfg.Temperature),
	}
	if cfg.Model != "" {
		opts = append(opts, llm.WithModel(cfg.Model))
	}
	adapter, err := llm.NewGollmAdapter(cfg.Provider, cfg.APIKey, opts...)
	if err != nil {
		return nil, err
	}

	middleware := []llm.Middleware{llm.LoggingMiddleware(log.WithName("llm"))}
	if cfg.RateLimit > 0 {
		middleware = append(middleware, llm.RateLimitMiddleware(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)))
	}
	client := llm.NewClient(
		llm.WithProvider(cfg.Provider, adapter),
		llm.WithDefaultProvider(cfg.Provider),
		llm.WithMiddleware(middleware...),
	)

	policy := llm.DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries
	return agent.NewLLMOracle(client,
		agent.WithModel(adapter.Model()),
		agent.WithTemperature(cfg.Temperature),
		agent.WithRetryPolicy(policy),
		agent.WithOracleLogger(log.WithName("oracle")),
	), nil
}

type runOptions struct {
	maxIterations int
	workspace     string
	tags          []string
	save          bool
	trace         bool
	events        bool
	jsonOutput    bool
}

func runCmd(load configLoader) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run [input]",
		Short: "Run the agent until it terminates or hits the iteration limit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, cfg, opts)
			if err := cfg.Validate(); err != nil {
				return err
			}
			input := defaultInput
			if len(args) == 1 {
				input = args[0]
			}
			return runAgent(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, input, opts)
		},
	}
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", 0, "override agent.max_iterations")
	cmd.Flags().StringVar(&opts.workspace, "workspace", "", "override workspace.root")
	cmd.Flags().StringSliceVar(&opts.tags, "tags", nil, "override agent.action_tags")
	cmd.Flags().BoolVar(&opts.save, "save", false, "store the run in the run log")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "export spans to stderr")
	cmd.Flags().BoolVar(&opts.events, "events", false, "print run events to stderr as JSON lines")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "print the full run result as JSON")
	return cmd
}

func applyRunFlags(cmd *cobra.Command, cfg *config.Config, opts runOptions) {
	if opts.maxIterations > 0 {
		cfg.Agent.MaxIterations = opts.maxIterations
	}
	if opts.workspace != "" {
		cfg.Workspace.Root = opts.workspace
	}
	if cmd.Flags().Changed("tags") {
		cfg.Agent.ActionTags = opts.tags
	}
	if opts.save {
		cfg.RunLog.Enabled = true
	}
	if opts.trace {
		cfg.Tracing.Enabled = true
	}
}

func runAgent(ctx context.Context, stdout, stderr io.Writer, cfg *config.Config, input string, opts runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := telemetry.NewLogger(stderr, cfg.Log.Level, cfg.Log.Format)

	agentOpts := []agent.Option{
		agent.WithMaxIterations(cfg.Agent.MaxIterations),
		agent.WithLoopDetection(cfg.Agent.LoopWindow),
		agent.WithOutputLimit(cfg.Agent.OutputLimit),
		agent.WithActionTags(cfg.Agent.ActionTags...),
		agent.WithOracleTimeout(cfg.Oracle.Timeout),
		agent.WithLanguage(agent.FunctionCallingLanguage{MaxTokens: cfg.Oracle.MaxTokens}),
		agent.WithLogger(log.WithName("agent")),
	}

	if cfg.Tracing.Enabled {
		tp, shutdown, err := telemetry.InitTracing(cfg.Tracing.ServiceName, version, stderr)
		if err != nil {
			return err
		}
		defer func() {
			if err := shutdown(context.Background()); err != nil {
				log.Error(err, "trace shutdown failed")
			}
		}()
		agentOpts = append(agentOpts, agent.WithTracerProvider(tp))
	}

	if opts.events {
		events := agent.NewEventEmitter(256)
		done := make(chan struct{})
		go func() {
			defer close(done)
			enc := json.NewEncoder(stderr)
			for ev := range events.Events() {
				_ = enc.Encode(ev)
			}
		}()
		defer func() {
			events.Close()
			<-done
		}()
		agentOpts = append(agentOpts, agent.WithEvents(events))
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	oracle, err := newOracle(cfg.Oracle, log)
	if err != nil {
		return fmt.Errorf("configure oracle: %w", err)
	}
	a, err := agent.New(cfg.Goals, registry, oracle, agentOpts...)
	if err != nil {
		return err
	}

	result, runErr := a.Run(ctx, input)

	if cfg.RunLog.Enabled && result != nil {
		if err := saveRun(ctx, cfg.RunLog.Path, input, result); err != nil {
			log.Error(err, "failed to save run", "run_id", result.ID)
		}
	}
	if runErr != nil {
		return runErr
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	fmt.Fprintln(stdout, summarize(result))
	return nil
}

func saveRun(ctx context.Context, path, input string, result *agent.RunResult) error {
	store, err := runlog.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Save(ctx, input, result)
}

// summarize renders the outcome of a run for the terminal.
func summarize(result *agent.RunResult) string {
	var sb strings.Builder
	switch result.State {
	case agent.StateTerminated:
		if result.Final != nil && result.Final.Success {
			fmt.Fprintf(&sb, "%v", result.Final.Value)
		} else if result.Final != nil {
			fmt.Fprintf(&sb, "Terminated with error: %s", result.Final.Error)
		}
	case agent.StateMaxIterations:
		fmt.Fprintf(&sb, "Stopped after %d iterations without terminating.", result.Iterations)
	default:
		fmt.Fprintf(&sb, "Run ended in state %s.", result.State)
	}
	fmt.Fprintf(&sb, "\n(run %s, %d iterations)", result.ID, result.Iterations)
	return sb.String()
}
