// Package main is the interview analyzer command line: the API server and
// one-shot scoring of typed or recorded answers.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"interview-analyzer/pkg/config"
	"interview-analyzer/pkg/interview"
	"interview-analyzer/pkg/util"
	"interview-analyzer/pkg/version"
)

var logger = logrus.New()

var rootCmd = &cobra.Command{
	Use:           "analyzer",
	Short:         "Interview response analyzer",
	Long:          "Scores interview answers for clarity, relevance, depth, completeness and delivery, and serves the analysis pipeline over HTTP.",
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads .env and the environment and configures the shared
// logger. One-shot commands keep stdout for their JSON output.
func loadConfig(oneShot bool) (*config.Config, error) {
	cfg, err := config.Load(logger)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyLogging(logger); err != nil {
		return nil, err
	}
	if oneShot && cfg.Logging.OutputFile == "" {
		logger.SetOutput(os.Stderr)
	}
	util.SetGlobalPanicHandler(logger)
	return cfg, nil
}

// loadQuestion resolves a question from a bank file, or builds an inline one
func loadQuestion(bankPath, questionID, questionText string) (interview.Question, error) {
	if bankPath != "" {
		bank, err := interview.LoadQuestionBank(bankPath)
		if err != nil {
			return interview.Question{}, err
		}
		return bank.Find(questionID)
	}
	if questionText == "" {
		return interview.Question{}, fmt.Errorf("either --bank with --question or --question-text is required")
	}
	id := questionID
	if id == "" {
		id = "inline"
	}
	return interview.Question{ID: id, Text: questionText, Type: interview.QuestionGeneral}, nil
}
