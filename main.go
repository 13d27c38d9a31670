package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mohitkumar/wfhammer/action"
	"github.com/mohitkumar/wfhammer/agent"
	"github.com/mohitkumar/wfhammer/config"
	"github.com/mohitkumar/wfhammer/executor"
	"github.com/mohitkumar/wfhammer/logger"
	"github.com/mohitkumar/wfhammer/mermaid"
	"github.com/mohitkumar/wfhammer/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const EXIT_FAILURE = 1
const EXIT_ABORTED = 2

type cli struct {
	cfg config.Config
}

func setupFlags(cmd *cobra.Command) error {
	defaults := config.Default()
	flags := cmd.PersistentFlags()
	flags.String("config-file", "", "Path to config file.")
	flags.String("redis-addr", strings.Join(defaults.RedisConfig.Addrs, ","), "comma separated list of redis host:port")
	flags.String("redis-password", "", "redis password")
	flags.Int("redis-db", 0, "redis database index")
	flags.String("namespace", defaults.RedisConfig.Namespace, "namespace used in storage")
	flags.String("storage-impl", string(defaults.StorageType), "workflow storage: memory, redis or file")
	flags.String("encoder-decoder", string(defaults.EncoderDecoderType), "encoder decoder used to serialize workflows in redis")
	flags.String("workflow-dir", "workflows", "directory of workflow definitions for file storage")
	flags.Int("http-port", defaults.HttpPort, "http port for rest endpoints")
	flags.Int("executor-capacity", defaults.ExecutorCapacity, "queued run capacity")
	flags.Int("max-transitions", defaults.MaxTransitions, "transition limit per run")
	flags.Int("max-history", defaults.MaxHistorySize, "execution events kept in memory")
	flags.Int("workflow-cache-size", defaults.WorkflowCacheSize, "compiled workflow cache capacity")
	flags.Int("transition-cache-size", defaults.TransitionCacheSize, "transition path cache capacity")
	flags.Int("condition-cache-size", defaults.ConditionCacheSize, "compiled condition cache capacity")
	flags.Duration("transition-cache-ttl", defaults.TransitionCacheTTL, "transition path time to live")
	flags.Duration("prompt-timeout", defaults.PromptTimeout, "default prompt timeout")
	flags.Int("prompts-per-minute", defaults.PromptsPerMinute, "prompt rate limit, 0 disables")
	flags.String("prompt-command", "", "command invoked for prompt actions")
	flags.Duration("run-retention", defaults.RunRetention, "how long finished runs are kept")
	flags.Int("maintenance-interval", defaults.MaintenanceInterval, "seconds between cache maintenance")
	flags.String("analytics-file", "", "append run outcomes to this file")
	flags.String("log-level", defaults.LogLevel, "debug, info, warn or error")
	flags.Bool("cost-tracking", defaults.CostTracking, "track api cost per run")
	return viper.BindPFlags(flags)
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	viper.SetEnvPrefix("WFHAMMER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	configFile := viper.GetString("config-file")
	if configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return err
			}
		}
	}

	c.cfg = config.Default()
	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Password = viper.GetString("redis-password")
	c.cfg.RedisConfig.DB = viper.GetInt("redis-db")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.EncoderDecoderType = config.EncoderDecoderType(viper.GetString("encoder-decoder"))
	c.cfg.WorkflowDir = viper.GetString("workflow-dir")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.ExecutorCapacity = viper.GetInt("executor-capacity")
	c.cfg.MaxTransitions = viper.GetInt("max-transitions")
	c.cfg.MaxHistorySize = viper.GetInt("max-history")
	c.cfg.WorkflowCacheSize = viper.GetInt("workflow-cache-size")
	c.cfg.TransitionCacheSize = viper.GetInt("transition-cache-size")
	c.cfg.ConditionCacheSize = viper.GetInt("condition-cache-size")
	c.cfg.TransitionCacheTTL = viper.GetDuration("transition-cache-ttl")
	c.cfg.PromptTimeout = viper.GetDuration("prompt-timeout")
	c.cfg.PromptsPerMinute = viper.GetInt("prompts-per-minute")
	c.cfg.RunRetention = viper.GetDuration("run-retention")
	c.cfg.MaintenanceInterval = viper.GetInt("maintenance-interval")
	c.cfg.AnalyticsFile = viper.GetString("analytics-file")
	c.cfg.LogLevel = viper.GetString("log-level")
	c.cfg.CostTracking = viper.GetBool("cost-tracking")
	logger.SetLevel(c.cfg.LogLevel)
	return nil
}

func (c *cli) collaborators() action.Collaborators {
	collab := action.Collaborators{
		UserInput: newStdinInput(os.Stdin, os.Stderr),
	}
	if command := viper.GetString("prompt-command"); command != "" {
		collab.Prompts = newCommandInvoker(command)
	}
	return collab
}

func (c *cli) serve(cmd *cobra.Command, args []string) error {
	a, err := agent.New(c.cfg, c.collaborators())
	if err != nil {
		return err
	}
	if err := a.Start(); err != nil {
		return err
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-a.Done():
	}
	return a.Shutdown()
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	vars, err := parseVars(viper.GetStringSlice("var"))
	if err != nil {
		return err
	}
	a, err := agent.New(c.cfg, c.collaborators())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	run, err := a.RunWorkflow(ctx, args[0], vars)
	if run != nil {
		out, _ := json.MarshalIndent(map[string]any{
			"runId":   run.Id,
			"status":  run.Status,
			"history": run.HistoryStates(),
			"context": run.Context,
		}, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
	}
	return err
}

func (c *cli) graph(cmd *cobra.Command, args []string) error {
	a, err := agent.New(c.cfg, c.collaborators())
	if err != nil {
		return err
	}
	defer a.Close()
	wf, err := a.Storage().Load(args[0])
	if err != nil {
		return err
	}
	return writeGraph(cmd.OutOrStdout(), wf, viper.GetString("format"))
}

func writeGraph(w io.Writer, wf *model.Workflow, format string) error {
	if format == "mermaid" {
		_, err := fmt.Fprint(w, mermaid.RenderDiagram(wf))
		return err
	}
	g := model.NewWorkflowGraph(wf)
	order, acyclic := g.TopologicalSort()
	out, err := json.MarshalIndent(map[string]any{
		"reachable":         g.ReachableFrom(wf.InitialState),
		"unreachable":       g.Unreachable(),
		"cycles":            g.Cycles(),
		"acyclic":           acyclic,
		"topologicalOrder":  order,
		"terminalReachable": g.TerminalReachable(),
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// parseVars accepts key=value pairs. Values that parse as JSON are stored decoded.
func parseVars(pairs []string) (map[string]any, error) {
	vars := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid variable %q, expected key=value", pair)
		}
		var decoded any
		if err := json.Unmarshal([]byte(value), &decoded); err != nil {
			decoded = value
		}
		vars[strings.TrimSpace(key)] = decoded
	}
	return vars, nil
}

func exitCode(err error) int {
	if executor.IsAbort(err) {
		return EXIT_ABORTED
	}
	return EXIT_FAILURE
}

func newRootCommand() (*cobra.Command, error) {
	c := &cli{}
	root := &cobra.Command{
		Use:               "wfhammer",
		Short:             "Workflow state machine executor",
		PersistentPreRunE: c.setupConfig,
		SilenceUsage:      true,
		SilenceErrors:     true,
	}
	if err := setupFlags(root); err != nil {
		return nil, err
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST server",
		RunE:  c.serve,
	}
	run := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run one workflow to completion",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}
	run.Flags().StringSlice("var", nil, "initial variable as key=value, repeatable")
	if err := viper.BindPFlag("var", run.Flags().Lookup("var")); err != nil {
		return nil, err
	}
	graph := &cobra.Command{
		Use:   "graph <workflow>",
		Short: "Analyze a workflow definition or print it as a state diagram",
		Args:  cobra.ExactArgs(1),
		RunE:  c.graph,
	}
	graph.Flags().String("format", "json", "json analysis or mermaid diagram")
	if err := viper.BindPFlag("format", graph.Flags().Lookup("format")); err != nil {
		return nil, err
	}
	root.AddCommand(serve, run, graph)
	return root, nil
}

func main() {
	root, err := newRootCommand()
	if err != nil {
		logger.Error("error setting up command", zap.Error(err))
		os.Exit(EXIT_FAILURE)
	}
	err = root.Execute()
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		var execErr *executor.ExecutorError
		if errors.As(err, &execErr) {
			logger.Debug("run failed", zap.String("kind", string(execErr.Kind)))
		}
		os.Exit(exitCode(err))
	}
}
