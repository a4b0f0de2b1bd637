package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/deck-narrator/cmd/deck-narrator/ui"
	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/ingest"
	"github.com/spherical/deck-narrator/internal/slidedir"
)

var (
	ingestUserID         string
	ingestPresentationID string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a .pptx or .pdf deck",
	Long: `Render every slide of a deck to PNG, extract its text and record the
presentation for the given user. Re-ingesting with the same --id replaces
the earlier slides.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestUserID, "user", "", "User ID owning the presentation (required)")
	ingestCmd.Flags().StringVar(&ingestPresentationID, "id", "", "Presentation ID (default: derived from upload time and file name)")
	ingestCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srcPath := args[0]
	if err := slidedir.ValidateKey("user id", ingestUserID); err != nil {
		return err
	}

	a, err := openApp(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	ui.Section("Deck Ingestion")
	ui.KeyValue("File", srcPath)
	ui.KeyValue("User", ingestUserID)
	ui.Newline()

	uploadedAt := time.Now()
	fileName := filepath.Base(srcPath)
	presentationID := ingestPresentationID
	if presentationID == "" {
		presentationID = ingest.PresentationID(uploadedAt, fileName)
	}
	if err := slidedir.ValidateKey("presentation id", presentationID); err != nil {
		return err
	}

	unlock, err := a.locker.Lock(ctx, lockKey(ingestUserID, presentationID))
	if err != nil {
		return fmt.Errorf("presentation %s is busy: %w", presentationID, err)
	}
	defer unlock()

	// Verbose runs print one line per step instead of a spinner.
	var spin *ui.Spinner
	if !ui.Verbose() {
		spin = ui.NewSpinner("Starting…")
		spin.Start()
	}
	report := func(msg string) {
		if spin == nil {
			ui.Step("%s", msg)
			return
		}
		spin.UpdateMessage(msg)
	}

	eventCh := make(chan domain.IngestEvent, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range eventCh {
			switch event.Type {
			case domain.EventState:
				report(stateMessage(event.Payload))
			case domain.EventSlideReady:
				report(fmt.Sprintf("Slide %d ready", event.SlideNumber))
			}
		}
	}()

	presentation, err := a.coordinator.Ingest(ctx, ingest.Request{
		UserID:         ingestUserID,
		PresentationID: presentationID,
		SourcePath:     srcPath,
		FileName:       fileName,
		UploadedAt:     uploadedAt,
	}, eventCh)
	close(eventCh)
	<-done
	if spin != nil {
		spin.Stop()
	}

	if err != nil {
		ui.Error("Ingestion failed: %v", err)
		return err
	}

	if err := a.repo.SavePresentation(context.WithoutCancel(ctx), presentation); err != nil {
		return fmt.Errorf("save presentation: %w", err)
	}

	rows := make([][]string, 0, len(presentation.Slides))
	for _, s := range presentation.Slides {
		rows = append(rows, []string{
			fmt.Sprint(s.Index),
			ui.Truncate(s.Text, 60),
			strings.Join(s.Keywords, ", "),
		})
	}
	ui.Table([]string{"SLIDE", "TEXT", "KEYWORDS"}, rows)
	ui.Newline()

	ui.Success("Ingested %d slides in %s", len(presentation.Slides), ui.FormatDuration(time.Since(uploadedAt)))
	ui.KeyValue("Presentation", presentation.ID)
	ui.KeyValue("Images", filepath.Join(a.dirs.Root(), ingestUserID, presentation.ID))
	return nil
}

func stateMessage(payload interface{}) string {
	switch payload {
	case ingest.StateDetecting:
		return "Detecting format…"
	case ingest.StateRendering:
		return "Rendering slides and extracting text…"
	case ingest.StateZipping:
		return "Pairing images with text…"
	case ingest.StateDone:
		return "Done"
	case ingest.StateFailed:
		return "Failed"
	default:
		return fmt.Sprint(payload)
	}
}
