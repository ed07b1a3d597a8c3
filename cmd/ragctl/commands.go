package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vidyai-rag/internal/bootstrap"
	"vidyai-rag/internal/config"
	"vidyai-rag/internal/platform/logger"
	"vidyai-rag/internal/source"
)

// needsQueue marks commands that publish to RabbitMQ; the rest skip the broker connection.
const needsQueue = "needs_queue"

type cli struct {
	app *bootstrap.App
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "ragctl",
		Short:         "Admin tool for chapter ingestion and retrieval",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context(), cmd.Annotations[needsQueue] == "true")
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return c.close()
		},
	}

	root.AddCommand(
		c.ensureCmd(),
		c.enqueueCmd(),
		c.jobCmd(),
		c.contextCmd(),
		c.statsCmd(),
	)
	return root
}

func (c *cli) open(ctx context.Context, withQueue bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config failed: %w", err)
	}
	c.log, err = logger.New(cfg.App.Env)
	if err != nil {
		return fmt.Errorf("init logger failed: %w", err)
	}
	var opts []bootstrap.Option
	if !withQueue {
		opts = append(opts, bootstrap.WithoutQueue())
	}
	c.app, err = bootstrap.New(ctx, cfg, c.log, opts...)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	return nil
}

func (c *cli) close() error {
	if c.log != nil {
		defer c.log.Sync()
	}
	if c.app == nil {
		return nil
	}
	return c.app.Close()
}

func (c *cli) ensureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure <chapter-id>",
		Short: "Embed a chapter's chunks now, ingesting its source if it has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			res, err := c.app.Chapters.Ensure(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("ensure failed: %w", err)
			}
			return printJSON(cmd, map[string]interface{}{
				"chapter_id":      id,
				"embedded_chunks": res.Embedded,
				"outcome":         res.Outcome,
			})
		},
	}
}

// chapterFile locates a chapter PDF by its upload layout instead of a raw storage key.
type chapterFile struct {
	board   string
	class   int
	subject string
	number  int
	file    string
}

// sourceRef prefers an explicit key and otherwise builds one from the layout flags.
// An empty result lets the job fall back to the chapter's stored key.
func (f chapterFile) sourceRef(explicit string) (string, error) {
	if explicit != "" || f.file == "" {
		return explicit, nil
	}
	if f.board == "" || f.subject == "" || f.class <= 0 || f.number <= 0 {
		return "", fmt.Errorf("--file needs --board, --class, --subject and --chapter")
	}
	return source.ChapterKey(f.board, f.class, f.subject, f.number, f.file), nil
}

func (c *cli) enqueueCmd() *cobra.Command {
	var (
		sourceRef string
		loc       chapterFile
	)
	cmd := &cobra.Command{
		Use:         "enqueue <chapter-id>",
		Short:       "Queue an ingestion job for a chapter",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{needsQueue: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ref, err := loc.sourceRef(sourceRef)
			if err != nil {
				return err
			}
			job, err := c.app.Jobs.Enqueue(cmd.Context(), id, ref)
			if err != nil {
				return fmt.Errorf("enqueue failed: %w", err)
			}
			return printJSON(cmd, job)
		},
	}
	cmd.Flags().StringVar(&sourceRef, "source", "", "storage key of the chapter PDF (defaults to the chapter's stored key)")
	cmd.Flags().StringVar(&loc.board, "board", "", "board name used to build the storage key")
	cmd.Flags().IntVar(&loc.class, "class", 0, "class number used to build the storage key")
	cmd.Flags().StringVar(&loc.subject, "subject", "", "subject name used to build the storage key")
	cmd.Flags().IntVar(&loc.number, "chapter", 0, "chapter number used to build the storage key")
	cmd.Flags().StringVar(&loc.file, "file", "", "uploaded file name; builds the key from the layout flags")
	return cmd
}

func (c *cli) jobCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "job <job-id>",
		Short: "Show an ingestion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := c.app.Jobs.GetJobStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, job)
		},
	}
}

func (c *cli) contextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context <chapter-id> <query>",
		Short: "Print the retrieval context for a query",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			text, err := c.app.Retrieval.RetrieveContext(cmd.Context(), id, args[1])
			if err != nil {
				return fmt.Errorf("retrieve context failed: %w", err)
			}
			if text == "" {
				cmd.Println("No matching chunks.")
				return nil
			}
			cmd.Println(text)
			return nil
		},
	}
}

func (c *cli) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <chapter-id>",
		Short: "Show chunk and embedding counts for a chapter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			stats, err := c.app.Chapters.Stats(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, stats)
		},
	}
}

func parseID(s string) (uint, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid chapter id %q", s)
	}
	return uint(id), nil
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
