package validation

import (
	"testing"

	"coursequiz/internal/dto"
	"coursequiz/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateStruct_CreateQuiz(t *testing.T) {
	v := NewValidator()

	ok := dto.CreateQuizRequest{Title: "Week 1", QuestionCount: 10, MaterialIDs: []string{util.NewULID()}}
	assert.Nil(t, v.ValidateStruct(ok))

	errs := v.ValidateStruct(dto.CreateQuizRequest{QuestionCount: 500, MaterialIDs: []string{"not-a-ulid"}})
	require.Len(t, errs, 3)
	fields := map[string]string{}
	for _, e := range errs {
		fields[e.Field] = e.Message
	}
	assert.Equal(t, "is required", fields["title"])
	assert.Equal(t, "must be at most 100", fields["question_count"])
	assert.Contains(t, fields["material_ids[0]"], "invalid format")
}

func TestValidateStruct_CheckAnswers(t *testing.T) {
	v := NewValidator()
	errs := v.ValidateStruct(dto.CheckAnswersRequest{})
	require.Len(t, errs, 1)
	assert.Equal(t, "answers", errs[0].Field)

	errs = v.ValidateStruct(dto.CheckAnswersRequest{Answers: []dto.AnswerItem{{Answer: "a"}}})
	require.Len(t, errs, 1)
	assert.Equal(t, "answers[0].question_id", errs[0].Field)
}

func TestValidateID(t *testing.T) {
	v := NewValidator()
	assert.Nil(t, v.ValidateID("quiz_id", util.NewULID(), true))
	assert.Len(t, v.ValidateID("quiz_id", "42", true), 1)
	assert.Nil(t, v.ValidateID("course_id", "bio-101", false))
	assert.Len(t, v.ValidateID("course_id", "", false), 1)
	assert.Len(t, v.ValidateID("course_id", "a/b", false), 1)
}
