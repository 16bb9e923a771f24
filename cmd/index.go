package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Inspect and verify the face index",
}

var indexInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the index size and configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		svc, err := newServices(ctx)
		if err != nil {
			return err
		}
		defer svc.close()

		recordCount, err := svc.faces.CountFaces(ctx)
		if err != nil {
			return fmt.Errorf("counting face records: %w", err)
		}

		fmt.Printf("Index path:    %s\n", svc.cfg.Index.Path)
		fmt.Printf("Dimension:     %d\n", svc.index.Dim())
		fmt.Printf("Index vectors: %d\n", svc.index.Count())
		fmt.Printf("Face records:  %d\n", recordCount)
		return nil
	},
}

var indexVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Cross-check the index against the metadata store",
	Long: `Verify that the number of vectors in the face index matches the
number of persisted face records. A mismatch means some ingested faces
are not searchable, or records reference missing index slots.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		svc, err := newServices(ctx)
		if err != nil {
			return err
		}
		defer svc.close()

		if err := svc.checkIntegrity(ctx); err != nil {
			return err
		}
		fmt.Printf("OK: index and store agree on %d faces\n", svc.index.Count())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(indexCmd)
	indexCmd.AddCommand(indexInfoCmd)
	indexCmd.AddCommand(indexVerifyCmd)
}
