package models

import "time"

type Course struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	Description  string    `json:"description"`
	TeacherID    int64     `json:"teacher_id"`
	IsActive     bool      `json:"is_active"`
	StudentCount int       `json:"student_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type Enrollment struct {
	CourseID   int64     `json:"course_id"`
	StudentID  int64     `json:"student_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
	IsActive   bool      `json:"is_active"`
}
