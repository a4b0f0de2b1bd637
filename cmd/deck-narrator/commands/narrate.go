package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/deck-narrator/cmd/deck-narrator/ui"
	"github.com/spherical/deck-narrator/internal/domain"
	"github.com/spherical/deck-narrator/internal/narrate"
)

var (
	narrateUserID         string
	narratePresentationID string
	narrateTone           string
	narrateSave           bool
)

var narrateCmd = &cobra.Command{
	Use:   "narrate",
	Short: "Draft a narration for every slide of a presentation",
	Long: `Walk the slides of an ingested presentation in order and ask the
language model for a narration of each, giving it the earlier slides as
context. With --save the narrations are stored with the slides.`,
	Args: cobra.NoArgs,
	RunE: runNarrate,
}

func init() {
	narrateCmd.Flags().StringVar(&narrateUserID, "user", "", "User ID owning the presentation (required)")
	narrateCmd.Flags().StringVar(&narratePresentationID, "presentation", "", "Presentation ID (required)")
	narrateCmd.Flags().StringVar(&narrateTone, "tone", "", "Voice tone (default from config)")
	narrateCmd.Flags().BoolVar(&narrateSave, "save", false, "Store the generated narrations")
	narrateCmd.MarkFlagRequired("user")
	narrateCmd.MarkFlagRequired("presentation")
	rootCmd.AddCommand(narrateCmd)
}

func runNarrate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, appCfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	presentation, err := a.repo.GetPresentation(ctx, narrateUserID, narratePresentationID)
	if err != nil {
		return fmt.Errorf("get presentation %s: %w", narratePresentationID, err)
	}

	tone := narrateTone
	if tone == "" {
		tone = appCfg.Narration.DefaultTone
	}

	ui.Section("Narration")
	ui.KeyValue("Presentation", presentation.FileName)
	ui.KeyValue("Model", appCfg.Narration.Model)
	ui.KeyValue("Tone", tone)
	ui.Newline()

	bar := ui.NewProgressBar(int64(len(presentation.Slides)), "Narrating")
	results := a.narrator.NarrateDeck(ctx, presentation.Slides, tone, func(r narrate.Result) {
		bar.Describe(fmt.Sprintf("Slide %d", r.SlideNumber))
		bar.Add(1)
	})
	bar.Finish()
	ui.Newline()

	failed := 0
	for _, r := range results {
		if !r.OK() {
			failed++
			ui.Warning("Slide %d: %s (%s)", r.SlideNumber, r.Error, r.Kind)
			continue
		}
		ui.Paragraph(fmt.Sprintf("Slide %d [%s]", r.SlideNumber, r.Language), r.Speech)
	}

	if narrateSave {
		saved, err := saveNarrations(context.WithoutCancel(ctx), a, presentation, results, tone)
		if err != nil {
			return err
		}
		ui.Success("Saved %d narrations", saved)
	}

	if failed > 0 {
		ui.Warning("%d of %d slides could not be narrated", failed, len(results))
	} else {
		ui.Success("Narrated %d slides", len(results))
	}
	return nil
}

// saveNarrations stores the successful results, keeping each slide's speed and pitch.
func saveNarrations(ctx context.Context, a *app, p *domain.Presentation, results []narrate.Result, tone string) (int, error) {
	slides := make(map[int]domain.Slide, len(p.Slides))
	for _, s := range p.Slides {
		slides[s.Index] = s
	}

	saved := 0
	for _, r := range results {
		if !r.OK() {
			continue
		}
		slide := slides[r.SlideNumber]
		rec := domain.NarrationRecord{
			UserID:         p.UserID,
			PresentationID: p.ID,
			SlideNumber:    r.SlideNumber,
			Narration:      r.Speech,
			VoiceTone:      tone,
			Speed:          slide.Speed,
			Pitch:          slide.Pitch,
		}
		rec.ApplyDefaults()
		if err := a.repo.UpsertNarration(ctx, rec); err != nil {
			return saved, fmt.Errorf("save narration for slide %d: %w", r.SlideNumber, err)
		}
		saved++
	}
	return saved, nil
}
