package cache

import (
	"strconv"
	"strings"
)

const (
	GlobalKeyPrefix = "coursequiz"
)

// Service and object names used in cache keys.
const (
	ServiceExtract   = "extract"
	ServiceQuiz      = "quiz"
	ServiceTaskQueue = "taskqueue"

	ObjectChunks   = "chunks"
	ObjectCourse   = "course"
	ObjectTask     = "task"
	ObjectQuizTask = "quiz"
)

// GenerateCacheKey generates a cache key for a given service, object type, and identifier.
// If paramsKey are provided, they are joined by "_" and appended to the cache key.
func GenerateCacheKey(serviceName, objectType, identifier string, paramsKey ...string) string {
	baseKey := strings.Join([]string{GlobalKeyPrefix, serviceName, objectType, identifier}, ":")
	if len(paramsKey) > 0 {
		return strings.Join([]string{baseKey, strings.Join(paramsKey, "_")}, ":")
	}
	return baseKey
}

// ChunksKey identifies the chunk list extracted from a set of materials.
func ChunksKey(materialIDs []string, chunkSize, maxChunks int) string {
	return GenerateCacheKey(ServiceExtract, ObjectChunks, strings.Join(materialIDs, ","), strconv.Itoa(chunkSize), strconv.Itoa(maxChunks))
}

// CourseQuizzesKey identifies the cached quiz list of a course.
func CourseQuizzesKey(courseID string) string {
	return GenerateCacheKey(ServiceQuiz, ObjectCourse, courseID)
}

// TaskKey identifies the status hash of a task.
func TaskKey(taskID string) string {
	return GenerateCacheKey(ServiceTaskQueue, ObjectTask, taskID)
}

// QuizTasksKey identifies the task id -> status index of a quiz.
func QuizTasksKey(quizID string) string {
	return GenerateCacheKey(ServiceTaskQueue, ObjectQuizTask, quizID)
}
