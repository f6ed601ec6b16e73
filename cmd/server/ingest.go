package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"docchat.dev/pdf-rag/internal/core"
)

var (
	ingestOwner string
	ingestJSON  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.pdf]",
	Short: "Ingest a PDF from disk and create a chat for it",
	Long: `Runs the same pipeline as the upload endpoint against a local file and
prints every progress event as it happens.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestOwner, "owner", "", "subject of the user who will own the chat (required)")
	ingestCmd.Flags().BoolVar(&ingestJSON, "json", false, "print events as JSON lines")
	_ = ingestCmd.MarkFlagRequired("owner")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	stream := app.ingestor.Stream(ctx, core.IngestRequest{
		OwnerID:     ingestOwner,
		FileName:    filepath.Base(path),
		ContentType: "application/pdf",
		Data:        data,
	})

	var last core.ProgressEvent
	for {
		select {
		case <-ctx.Done():
			stream.Abandon()
			return ctx.Err()
		case ev, open := <-stream.Events():
			if !open {
				return ingestResult(cmd, last)
			}
			last = ev
			printEvent(cmd, ev)
		}
	}
}

func printEvent(cmd *cobra.Command, ev core.ProgressEvent) {
	if ingestJSON {
		data, _ := json.Marshal(ev)
		cmd.Println(string(data))
		return
	}
	cmd.Printf("[%3d%%] %s\n", ev.Progress, ev.Message)
}

func ingestResult(cmd *cobra.Command, last core.ProgressEvent) error {
	if !last.Terminal() {
		return errors.New("ingestion ended without a result")
	}
	if !*last.Success {
		return fmt.Errorf("ingestion failed: %s (%s)", last.Error, last.Detail)
	}
	if last.Chat != nil && !ingestJSON {
		cmd.Printf("Created chat %s (%q) for document %s\n", last.Chat.ID, last.Chat.Title, last.Chat.DocumentID)
	}
	return nil
}
