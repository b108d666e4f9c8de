package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "interview-analyzer/pkg/errors"
	"interview-analyzer/pkg/interview"
)

const bankYAML = `
name: cli bank
questions:
  - id: q-conflict
    text: Describe a disagreement with a colleague and how you resolved it.
    type: behavioral
`

const conflictAnswer = "A colleague and I disagreed about the release plan. I set up a short meeting, " +
	"we listed the risks together and agreed to ship behind a feature flag. The release went out on time."

func resetFlags() {
	scoreBank, scoreQuestionID, scoreQuestionText = "", "", ""
	scoreText, scoreTextFile = "", ""
	scoreResponseTime, scoreQuick = 0, false

	transcribeFile, transcribeBank, transcribeQuestionID, transcribeQuestionText = "", "", "", ""
	transcribeProvider, transcribeSampleRate = "", 0
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Setenv("LOG_LEVEL", "error")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeBank(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "questions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(bankYAML), 0o644))
	return path
}

func TestScoreInlineQuestion(t *testing.T) {
	out, err := execute(t, "", "score", "--question-text", "Describe a disagreement.", "--text", conflictAnswer)
	require.NoError(t, err)

	var result interview.ResponseAnalysis
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "inline", result.QuestionID)
	assert.Equal(t, interview.StageComprehensive, result.Stage)
	assert.Greater(t, result.WordCount, 20)
}

func TestScoreFromBankQuick(t *testing.T) {
	out, err := execute(t, "", "score", "--bank", writeBank(t), "--question", "q-conflict", "--text", conflictAnswer, "--quick")
	require.NoError(t, err)

	var result interview.ResponseAnalysis
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "q-conflict", result.QuestionID)
	assert.Equal(t, interview.StagePreliminary, result.Stage)
}

func TestScoreReadsStdin(t *testing.T) {
	out, err := execute(t, conflictAnswer, "score", "--question-text", "Describe a disagreement.", "--text-file", "-")
	require.NoError(t, err)

	var result interview.ResponseAnalysis
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Greater(t, result.WordCount, 20)
}

func TestScoreErrors(t *testing.T) {
	_, err := execute(t, "", "score", "--text", conflictAnswer)
	assert.Error(t, err, "a question is required")

	_, err = execute(t, "", "score", "--bank", writeBank(t), "--question", "q-missing", "--text", conflictAnswer)
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrNotFound))
}

func TestTranscribeRequiresProvider(t *testing.T) {
	recording := filepath.Join(t.TempDir(), "answer.pcm")
	require.NoError(t, os.WriteFile(recording, make([]byte, 3200), 0o644))

	_, err := execute(t, "", "transcribe", "--file", recording, "--question-text", "Describe a disagreement.", "--provider", "none")
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrProviderUnavailable))
}
