package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/smartnotes/internal/config"
	"github.com/kalambet/smartnotes/internal/document"
	"github.com/kalambet/smartnotes/internal/gateway"
	"github.com/kalambet/smartnotes/internal/session"
)

// --- ask ---

var askCmd = &cobra.Command{
	Use:   "ask <question...>",
	Short: "Ask one question about the uploaded documents",
	Long: `Ask one question about the uploaded documents.

Examples:
  smartnotes ask "What is the refund policy?"
  smartnotes ask --provider anthropic summarize the onboarding notes`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		s := a.session()
		defer s.Close()

		if p, _ := cmd.Flags().GetString("provider"); p != "" {
			provider, err := gateway.ParseProvider(p)
			if err != nil {
				return err
			}
			s.SetProvider(provider)
		}

		return askQuestion(cmd.Context(), s, cmd.OutOrStdout(), strings.Join(args, " "))
	},
}

func init() {
	askCmd.Flags().String("provider", "", "LLM provider: openai or anthropic (default from config)")
}

func askQuestion(ctx context.Context, s *session.Session, w io.Writer, question string) error {
	turn, err := s.Ask(ctx, question)
	if errors.Is(err, session.ErrEmptyInput) {
		return fmt.Errorf("question is empty")
	}
	if err != nil {
		return err
	}
	writeTurn(w, turn)
	return nil
}

// --- upload ---

var uploadCmd = &cobra.Command{
	Use:   "upload [file...]",
	Short: "Upload PDFs, text files or plain text",
	Long: `Upload PDFs, text files or plain text to the knowledge base.

Examples:
  smartnotes upload ./contract.pdf ./meeting.md
  smartnotes upload --text "The office closes at 6pm on Fridays"
  pbpaste | smartnotes upload --stdin`,
	RunE: func(cmd *cobra.Command, args []string) error {
		text, _ := cmd.Flags().GetString("text")
		fromStdin, _ := cmd.Flags().GetBool("stdin")

		if len(args) == 0 && text == "" && !fromStdin {
			return fmt.Errorf("one of <file>, --text, or --stdin is required")
		}
		if fromStdin {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
			text = string(data)
		}

		a, err := newApp(cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		s := a.session()
		defer s.Close()

		out := cmd.OutOrStdout()
		var uploadErr error
		if text != "" {
			uploadErr = uploadText(cmd.Context(), s, out, text)
		}
		if len(args) > 0 {
			uploadErr = errors.Join(uploadErr, uploadFiles(cmd.Context(), s, out, args))
		}
		writeRecent(out, s.RecentUploads())
		return uploadErr
	},
}

func init() {
	uploadCmd.Flags().String("text", "", "plain text to store")
	uploadCmd.Flags().Bool("stdin", false, "read plain text to store from stdin")
}

func uploadText(ctx context.Context, s *session.Session, w io.Writer, text string) error {
	res, err := s.UploadText(ctx, text)
	if errors.Is(err, session.ErrEmptyInput) {
		return fmt.Errorf("text is empty")
	}
	if err != nil {
		return err
	}
	writeUploadResult(w, res.Filename, res)
	return nil
}

// uploadFiles uploads paths one after another so every upload resolves
// before the next begins. Failures are reported and the rest continue.
func uploadFiles(ctx context.Context, s *session.Session, w io.Writer, paths []string) error {
	failed := 0
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		src, err := document.Load(path)
		if err != nil {
			printError("%s: %v", path, err)
			failed++
			continue
		}

		var res *gateway.UploadResult
		if src.Kind == document.KindPDF {
			res, err = s.UploadFile(ctx, src.Name, src.Data)
		} else {
			res, err = s.UploadTextAs(ctx, src.Name, src.Text)
		}
		if err != nil {
			printError("%s: %v", src.Name, err)
			failed++
			continue
		}
		writeUploadResult(w, src.Name, res)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d uploads failed", failed, len(paths))
	}
	return nil
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show backend health and client settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.ErrOrStderr())
		if err != nil {
			printError("config error: %v", err)
			return nil
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		showStatus(ctx, a)
		return nil
	},
}

func showStatus(ctx context.Context, a *app) {
	printStatus("Backend", "%s", a.gw.BaseURL())
	if err := a.gw.Health(ctx); err != nil {
		printStatus("Health", "%s", colorize(colorRed, err.Error()))
		printWarning("backend not reachable; run `smartnotes stub` for a local one")
	} else {
		printStatus("Health", "%s", colorize(colorGreen, "healthy"))
	}
	if a.cfg.Backend.APIToken == "" {
		printStatus("Auth", "none")
	} else {
		printStatus("Auth", "bearer token")
	}
	printStatus("Provider", "%s", a.cfg.Query.DefaultProvider.Label())
	if a.cfg.Watch.Dir != "" {
		printStatus("Watch dir", "%s", a.cfg.Watch.Dir)
	}
	printStatus("Config file", "%s", config.FilePath())
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", colorize(colorBold, k.Key), k.Value)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: "Set a configuration value. Valid keys: " + strings.Join(config.ValidKeys(), ", ") + `.

The backend API token is read from SMARTNOTES_BACKEND_API_TOKEN only.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}
