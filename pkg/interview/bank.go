package interview

import (
	"os"

	"gopkg.in/yaml.v3"

	"interview-analyzer/pkg/errors"
)

// QuestionBank is a YAML file of questions
type QuestionBank struct {
	Name      string     `yaml:"name"`
	Questions []Question `yaml:"questions"`
}

// LoadQuestionBank reads and validates a question bank file
func LoadQuestionBank(path string) (*QuestionBank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read question bank").WithField("path", path)
	}
	return ParseQuestionBank(data)
}

// ParseQuestionBank decodes a question bank from YAML
func ParseQuestionBank(data []byte) (*QuestionBank, error) {
	var bank QuestionBank
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return nil, errors.Wrap(err, "failed to parse question bank")
	}

	seen := make(map[string]bool, len(bank.Questions))
	for i := range bank.Questions {
		q := &bank.Questions[i]
		if q.ID == "" || q.Text == "" {
			return nil, errors.NewInvalidInput("question requires id and text", map[string]interface{}{"index": i})
		}
		if seen[q.ID] {
			return nil, errors.NewInvalidInput("duplicate question id", map[string]interface{}{"id": q.ID})
		}
		seen[q.ID] = true
		if q.Type == "" {
			q.Type = QuestionGeneral
		}
	}
	return &bank, nil
}

// Find returns the question with the given id
func (b *QuestionBank) Find(id string) (Question, error) {
	for _, q := range b.Questions {
		if q.ID == id {
			return q, nil
		}
	}
	return Question{}, errors.NewNotFound("question not found", map[string]interface{}{"id": id})
}
