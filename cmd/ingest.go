package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/eventlens/eventlens/internal/pipeline"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [event-id] [files-or-dirs...]",
	Short: "Ingest a batch of event photos into the face index",
	Long: `Ingest photos for an event directly from the command line.
Each photo is loaded, its faces detected and embedded through the
inference sidecar, and the results are written to the shared index
and the metadata store. Directories are expanded one level deep.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("photographer", "", "Photographer identity to attach to every face record")
	ingestCmd.Flags().String("task-id", "", "Task id for the run (defaults to a random UUID)")
}

// collectPhotoPaths expands the positional arguments into a flat file list.
// Directories contribute their immediate image files.
func collectPhotoPaths(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", arg, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("reading directory %s: %w", arg, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			switch strings.ToLower(filepath.Ext(entry.Name())) {
			case ".jpg", ".jpeg", ".png", ".webp", ".bmp":
				paths = append(paths, filepath.Join(arg, entry.Name()))
			}
		}
	}
	return paths, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	eventID := args[0]
	photographer := mustGetString(cmd, "photographer")
	taskID := mustGetString(cmd, "task-id")
	if taskID == "" {
		taskID = uuid.NewString()
	}

	filePaths, err := collectPhotoPaths(args[1:])
	if err != nil {
		return err
	}
	if len(filePaths) == 0 {
		return fmt.Errorf("no photo files found in the given arguments")
	}

	ctx := context.Background()
	svc, err := newServices(ctx)
	if err != nil {
		return err
	}
	defer svc.close()

	fmt.Printf("Ingesting %d photos for event %s (task %s)\n", len(filePaths), eventID, taskID)

	var bar *progressbar.ProgressBar
	result := svc.ingestor.Run(ctx, pipeline.IngestRequest{
		TaskID:       taskID,
		EventID:      eventID,
		Photographer: photographer,
		FilePaths:    filePaths,
		Progress: func(stored, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "storing records")
			}
			_ = bar.Set(stored)
		},
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}

	fmt.Printf("Status:           %s\n", result.Status)
	fmt.Printf("Images processed: %d\n", result.ImagesProcessed)
	fmt.Printf("Failed images:    %d\n", result.FailedImages)
	fmt.Printf("Faces indexed:    %d\n", result.FacesIndexed)
	fmt.Printf("Records stored:   %d\n", result.RecordsStored)
	if result.Unlocked {
		fmt.Println("Note: the run proceeded without the index write lock")
	}
	if result.Status != pipeline.StatusCompleted {
		return fmt.Errorf("ingestion failed: %s", result.Error)
	}
	return nil
}
