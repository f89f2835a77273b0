package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nachoal/kaizen-chat/api"
	"github.com/nachoal/kaizen-chat/chat"
	"github.com/nachoal/kaizen-chat/config"
	"github.com/nachoal/kaizen-chat/history"
	"github.com/nachoal/kaizen-chat/internal/logging"
	"github.com/nachoal/kaizen-chat/stream"
	"github.com/nachoal/kaizen-chat/tools"
	"github.com/nachoal/kaizen-chat/tui"
)

var (
	// Flags
	configPath string
	baseURL    string
	variant    string
	verbose    bool
	askTools   []string

	// Root command
	rootCmd = &cobra.Command{
		Use:          "kaizen-chat",
		Short:        "Chat with the CF Kaizen assistants",
		Long:         "Kaizen Chat - a terminal front end for the CF Kaizen butler and hoover chat servers",
		RunE:         runTUI,
		SilenceUsage: true,
	}

	// Ask command for one-shot questions
	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question without entering the TUI",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk,
	}

	// Tools command
	toolsCmd = &cobra.Command{
		Use:   "tools",
		Short: "Tool commands",
	}

	// List tools subcommand
	listToolsCmd = &cobra.Command{
		Use:   "list",
		Short: "List the tools the server offers",
		RunE:  listTools,
	}

	greetingCmd = &cobra.Command{
		Use:   "greeting",
		Short: "Print the assistant greeting",
		RunE:  printGreeting,
	}

	configCmd = &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}

	setDefaultCmd = &cobra.Command{
		Use:   "set-default",
		Short: "Persist the default --variant and --base-url",
		RunE:  setDefaults,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Config file (default ~/.kaizen-chat/config.json)")
	flags.StringVar(&baseURL, "base-url", "", "Chat server base URL")
	flags.StringVar(&variant, "variant", "", "Assistant variant (butler, hoover)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	askCmd.Flags().StringSliceVar(&askTools, "tools", nil, "Tools to enable by id or name (default all)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(greetingCmd)
	rootCmd.AddCommand(configCmd)
	toolsCmd.AddCommand(listToolsCmd)
	configCmd.AddCommand(setDefaultCmd)
}

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session bundles what every command needs
type session struct {
	cfg    *config.Config
	logger *zap.Logger
	client *api.HTTPClient
	close  func()
}

func newSession(cmd *cobra.Command) (*session, error) {
	manager, err := config.NewManager(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	v := manager.Viper()
	flags := cmd.Flags()
	if err := v.BindPFlag("base_url", flags.Lookup("base-url")); err != nil {
		return nil, err
	}
	if err := v.BindPFlag("variant", flags.Lookup("variant")); err != nil {
		return nil, err
	}

	cfg, err := manager.Config()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger, closeLog, err := logging.New(cfg.Log, verbose)
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(
		api.WithBaseURL(cfg.BaseURL),
		api.WithVariant(cfg.VariantName()),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithHeaders(cfg.Headers),
		api.WithBreaker(api.BreakerSettings{
			MaxFailures: cfg.Breaker.MaxFailures,
			Timeout:     cfg.Breaker.Timeout,
		}),
		api.WithRateLimit(api.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}),
		api.WithLogger(logger),
	)
	if err != nil {
		_ = closeLog()
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	logger.Info("session started",
		zap.String("variant", string(cfg.VariantName())),
		zap.String("base_url", cfg.BaseURL),
		zap.String("config", manager.Path()),
	)

	return &session{
		cfg:    cfg,
		logger: logger,
		client: client,
		close: func() {
			_ = client.Close()
			_ = closeLog()
		},
	}, nil
}

func (s *session) controller(sel *tools.Selection) *chat.Controller {
	return chat.NewController(s.client, sel, history.NewStore(),
		chat.WithMarker(s.cfg.AnswerMarker),
		chat.WithFraming(s.cfg.FramingMode()),
		chat.WithAlerts(chat.NewAlerts(s.cfg.AlertDuration)),
		chat.WithLogger(s.logger),
	)
}

func runTUI(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	// Tools are fetched by the TUI once it starts
	controller := s.controller(tools.NewSelection())

	m := tui.NewChatTUI(controller, s.client, tui.Options{
		Variant: s.cfg.VariantName(),
		BaseURL: s.cfg.BaseURL,
		Theme:   s.cfg.Theme,
		Logger:  s.logger,
	})
	tui.PrintHeader(m.Styles(), s.cfg.VariantName(), s.cfg.BaseURL)

	p := tea.NewProgram(m, tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	ctx := cmd.Context()
	available, err := s.client.Tools(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tools: %w", err)
	}

	sel := tools.NewSelection()
	sel.Load(available)
	if len(askTools) > 0 {
		ids, unknown := resolveTools(sel, askTools)
		for _, name := range unknown {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: unknown tool %q\n", name)
		}
		sel.Set(ids)
	}

	controller := s.controller(sel)
	start := time.Now()
	events, err := controller.Submit(ctx, question)
	if err != nil {
		return err
	}

	return streamAnswer(cmd.OutOrStdout(), events, start)
}

// streamAnswer writes the answer as it grows, then a metadata line. When the
// server reported no timing the client side elapsed time is used.
func streamAnswer(out io.Writer, events <-chan chat.Event, start time.Time) error {
	printed := 0
	for ev := range events {
		switch ev.Type {
		case chat.EventStreaming, chat.EventText, chat.EventMetadata:
			if len(ev.Answer) > printed {
				fmt.Fprint(out, ev.Answer[printed:])
				printed = len(ev.Answer)
			}

		case chat.EventComplete:
			if len(ev.Answer) > printed {
				fmt.Fprint(out, ev.Answer[printed:])
			}
			fmt.Fprintln(out)

			md := withClientTiming(ev.Metadata, time.Since(start))
			if line := metadataLine(md); line != "" {
				fmt.Fprintf(out, "\n[%s]\n", line)
			}
			return nil

		case chat.EventError:
			if printed > 0 {
				fmt.Fprintln(out)
			}
			return fmt.Errorf("%s: %w", chat.MsgRequestFailed, ev.Err)
		}
	}
	return nil
}

func withClientTiming(md *stream.Metadata, elapsed time.Duration) stream.Metadata {
	var out stream.Metadata
	if md != nil {
		out = *md
	}
	if out.ResponseTime == "" {
		out.ResponseTime = stream.FormatResponseTime(elapsed)
	}
	if out.TokensPerSecond == 0 {
		out.TokensPerSecond = stream.TokensPerSecond(out.TotalTokens, elapsed)
	}
	return out
}

func metadataLine(md stream.Metadata) string {
	var parts []string
	for _, f := range md.Fields(false) {
		parts = append(parts, f.Label+": "+f.Value)
	}
	return strings.Join(parts, ", ")
}

// resolveTools maps ids or display names to tool ids
func resolveTools(sel *tools.Selection, names []string) (ids []string, unknown []string) {
	byName := make(map[string]string)
	for _, d := range sel.Available() {
		byName[strings.ToLower(d.DisplayName)] = d.ID
	}
	for _, name := range names {
		name = strings.TrimSpace(name)
		switch {
		case name == "":
		case sel.Known(name):
			ids = append(ids, name)
		case byName[strings.ToLower(name)] != "":
			ids = append(ids, byName[strings.ToLower(name)])
		default:
			unknown = append(unknown, name)
		}
	}
	return ids, unknown
}

func listTools(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	available, err := s.client.Tools(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load tools: %w", err)
	}

	out := cmd.OutOrStdout()
	descriptors := tools.Describe(available)
	if len(descriptors) == 0 {
		fmt.Fprintln(out, "No tools available.")
		return nil
	}

	fmt.Fprintf(out, "Available tools (%s):\n", s.cfg.VariantName())
	for _, d := range descriptors {
		fmt.Fprintf(out, "  🔧 %-20s %-30s %s\n", d.DisplayName, d.ID, d.Description)
	}
	return nil
}

func printGreeting(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	greeting, err := s.client.Greeting(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to fetch greeting: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(greeting))
	return nil
}

func setDefaults(cmd *cobra.Command, args []string) error {
	if variant == "" && baseURL == "" {
		return errors.New("nothing to set: pass --variant and/or --base-url")
	}

	manager, err := config.NewManager(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config manager: %w", err)
	}
	if err := manager.SetDefaults(variant, baseURL); err != nil {
		return err
	}

	cfg, err := manager.Config()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved defaults to %s: variant=%s base_url=%s\n", manager.Path(), cfg.VariantName(), cfg.BaseURL)
	return nil
}
