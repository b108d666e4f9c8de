package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a typed answer",
	Long:  "Runs the text scorer over one answer and prints the analysis as JSON. The answer comes from --text, --text-file, or stdin when --text-file is '-'.",
	RunE:  runScore,
}

var (
	scoreBank         string
	scoreQuestionID   string
	scoreQuestionText string
	scoreText         string
	scoreTextFile     string
	scoreResponseTime float64
	scoreQuick        bool
)

func init() {
	scoreCmd.Flags().StringVarP(&scoreBank, "bank", "b", "", "Question bank YAML file")
	scoreCmd.Flags().StringVarP(&scoreQuestionID, "question", "q", "", "Question id in the bank")
	scoreCmd.Flags().StringVar(&scoreQuestionText, "question-text", "", "Question text when no bank is given")
	scoreCmd.Flags().StringVarP(&scoreText, "text", "t", "", "Answer text")
	scoreCmd.Flags().StringVar(&scoreTextFile, "text-file", "", "File holding the answer text ('-' for stdin)")
	scoreCmd.Flags().Float64Var(&scoreResponseTime, "response-time", 0, "Seconds taken to answer, used for pace")
	scoreCmd.Flags().BoolVar(&scoreQuick, "quick", false, "Run the preliminary pass only")

	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, _ []string) error {
	if _, err := loadConfig(true); err != nil {
		return err
	}

	question, err := loadQuestion(scoreBank, scoreQuestionID, scoreQuestionText)
	if err != nil {
		return err
	}

	text, err := answerText(cmd.InOrStdin())
	if err != nil {
		return err
	}

	response := interview.Response{
		ID:                  uuid.NewString(),
		QuestionID:          question.ID,
		Content:             text,
		ResponseTimeSeconds: scoreResponseTime,
		SubmittedAt:         time.Now(),
	}

	scorer := scoring.NewTextScorer(logger)
	var result interview.ResponseAnalysis
	if scoreQuick {
		result = scorer.QuickScore(response, question)
	} else {
		result = scorer.Score(response, question)
	}

	return writeResult(cmd.OutOrStdout(), result)
}

func answerText(stdin io.Reader) (string, error) {
	switch {
	case scoreTextFile == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read answer from stdin: %w", err)
		}
		return string(data), nil
	case scoreTextFile != "":
		data, err := os.ReadFile(scoreTextFile)
		if err != nil {
			return "", fmt.Errorf("failed to read answer file %s: %w", scoreTextFile, err)
		}
		return string(data), nil
	default:
		return scoreText, nil
	}
}

func writeResult(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}
	return nil
}
