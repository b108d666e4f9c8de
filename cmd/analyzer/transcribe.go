package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"interview-analyzer/pkg/analysis"
	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/transcribe"
)

var transcribeCmd = &cobra.Command{
	Use:   "transcribe",
	Short: "Transcribe a recorded answer and score it",
	Long: "Streams a raw 16-bit little-endian mono PCM recording to the configured transcription provider " +
		"(TRANSCRIBE_PROVIDER), measures its volume, and prints the combined text and speech analysis as JSON.",
	RunE: runTranscribe,
}

var (
	transcribeFile         string
	transcribeBank         string
	transcribeQuestionID   string
	transcribeQuestionText string
	transcribeProvider     string
	transcribeSampleRate   int
)

func init() {
	transcribeCmd.Flags().StringVarP(&transcribeFile, "file", "f", "", "Raw PCM recording (required)")
	transcribeCmd.Flags().StringVarP(&transcribeBank, "bank", "b", "", "Question bank YAML file")
	transcribeCmd.Flags().StringVarP(&transcribeQuestionID, "question", "q", "", "Question id in the bank")
	transcribeCmd.Flags().StringVar(&transcribeQuestionText, "question-text", "", "Question text when no bank is given")
	transcribeCmd.Flags().StringVar(&transcribeProvider, "provider", "", "Transcription provider (overrides TRANSCRIBE_PROVIDER)")
	transcribeCmd.Flags().IntVar(&transcribeSampleRate, "sample-rate", 0, "Recording sample rate (overrides TRANSCRIBE_SAMPLE_RATE)")

	if err := transcribeCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}
	rootCmd.AddCommand(transcribeCmd)
}

func runTranscribe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	if transcribeProvider != "" {
		cfg.Transcribe.Provider = transcribeProvider
	}
	if transcribeSampleRate > 0 {
		cfg.Transcribe.SampleRate = transcribeSampleRate
	}

	question, err := loadQuestion(transcribeBank, transcribeQuestionID, transcribeQuestionText)
	if err != nil {
		return err
	}

	provider, err := transcribe.NewProvider(logger, cfg.Transcribe)
	if err != nil {
		return err
	}

	f, err := os.Open(transcribeFile)
	if err != nil {
		return fmt.Errorf("failed to open recording %s: %w", transcribeFile, err)
	}
	defer f.Close()

	recognizer := transcribe.NewRecognizer(logger, provider, transcribe.RecognizerOptions{
		MaxRetries: cfg.Transcribe.MaxRetries,
		Backoff:    cfg.Transcribe.RetryBackoff,
		OnStateChange: func(state transcribe.State, retries int) {
			logger.WithFields(logrus.Fields{
				"state":   state.String(),
				"retries": retries,
			}).Debug("Recognizer state changed")
		},
	})
	recorder := transcribe.NewRecorder(cfg.Transcribe.SampleRate)

	bundle, err := transcribe.Capture(cmd.Context(), recognizer, recorder, bufio.NewReader(f), func(fragment transcribe.Fragment) {
		logger.WithFields(logrus.Fields{
			"final":  fragment.Final,
			"volume": recorder.CurrentVolume(),
		}).Info(fragment.Text)
	})
	if err != nil {
		return err
	}
	// a file is read faster than real time; pace follows the audio length
	bundle.EndedAt = bundle.StartedAt.Add(recorder.AudioDuration())

	response := interview.Response{
		ID:                  uuid.NewString(),
		QuestionID:          question.ID,
		Audio:               bundle,
		ResponseTimeSeconds: recorder.AudioDuration().Seconds(),
		SubmittedAt:         time.Now(),
	}

	result, err := analysis.NewPipelineScorer(logger).Comprehensive(cmd.Context(), response, question)
	if err != nil {
		return err
	}
	return writeResult(cmd.OutOrStdout(), result)
}
