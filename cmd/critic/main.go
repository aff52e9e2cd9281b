// critic critiques an artwork against the rated reference corpus, or answers
// a free-form question about the ratings.
//
// Usage:
//
//	critic critique --image painting.jpg [--instruction "..."] [--output text|json|yaml]
//	critic ask "Which artworks reached Outstanding for color?"
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gallery-ai/critic/internal/app"
	"github.com/gallery-ai/critic/internal/models"
	"github.com/gallery-ai/critic/internal/service"
)

const serviceName = "critic"

var errUnknownOutput = errors.New("--output must be text, json or yaml")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCommand().ExecuteContext(ctx)

	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Retrieval-grounded art critique",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newCritiqueCommand(), newAskCommand())

	return root
}

func newCritiqueCommand() *cobra.Command {
	var imagePath, instruction, output string

	cmd := &cobra.Command{
		Use:   "critique",
		Short: "Critique an uploaded artwork",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output != "text" && output != "json" && output != "yaml" {
				return errUnknownOutput
			}

			data, err := os.ReadFile(imagePath)
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}

			return withService(cmd.Context(), func(ctx context.Context, svc *service.CritiqueService) error {
				critique, err := svc.Critique(ctx, service.CritiqueRequest{
					Image:       data,
					Filename:    filepath.Base(imagePath),
					Instruction: instruction,
				})
				if err != nil {
					return err
				}

				return writeCritique(cmd.OutOrStdout(), output, critique)
			})
		},
	}

	cmd.Flags().StringVar(&imagePath, "image", "", "path to the artwork image (required)")
	cmd.Flags().StringVar(&instruction, "instruction", "", "question for the critic (default: ask for a critique and suggestions)")
	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func newAskCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Ask a question about the rated corpus",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")

			return withService(cmd.Context(), func(ctx context.Context, svc *service.CritiqueService) error {
				answer, err := svc.Ask(ctx, question)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)

				return err
			})
		},
	}
}

// withService bootstraps the process, runs fn and tears everything down.
func withService(ctx context.Context, fn func(context.Context, *service.CritiqueService) error) error {
	cfg, logger, tel, err := app.Bootstrap(serviceName, false)
	if err != nil {
		return err
	}
	defer tel.Shutdown(context.WithoutCancel(ctx))

	db, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := app.NewCritiqueService(ctx, cfg, db, tel, logger)
	if err != nil {
		return err
	}

	return fn(ctx, svc)
}

type critiqueOutput struct {
	RequestID  string                  `json:"request_id" yaml:"request_id"`
	Critique   string                  `json:"critique" yaml:"critique"`
	References []string                `json:"references" yaml:"references"`
	Evidence   []models.EvidenceRecord `json:"evidence,omitempty" yaml:"evidence,omitempty"`
	Notes      []string                `json:"notes,omitempty" yaml:"notes,omitempty"`
}

func writeCritique(w io.Writer, format string, c *service.Critique) error {
	out := critiqueOutput{
		RequestID:  c.RequestID,
		Critique:   c.Text,
		References: c.References,
		Evidence:   c.Evidence.Records,
		Notes:      c.Notes,
	}

	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		defer enc.Close()

		return enc.Encode(out)
	}

	if _, err := fmt.Fprintln(w, c.Text); err != nil {
		return err
	}

	if len(c.References) > 0 {
		if _, err := fmt.Fprintf(w, "\nReferences: %s\n", strings.Join(c.References, ", ")); err != nil {
			return err
		}
	}

	for _, note := range c.Notes {
		if _, err := fmt.Fprintf(w, "Note: %s\n", note); err != nil {
			return err
		}
	}

	return nil
}
