package seedmodels

// SeedMaterial is one already-uploaded PDF in the seed manifest.
type SeedMaterial struct {
	ID       string `json:"id" validate:"required,ulid"`
	FilePath string `json:"file_path" validate:"required"`
	FileName string `json:"file_name" validate:"required"`
}

// SeedCourse groups the materials of one course.
type SeedCourse struct {
	CourseID  string         `json:"course_id" validate:"required,max=64"`
	Materials []SeedMaterial `json:"materials" validate:"required,min=1,dive"`
}
