package report

import (
	"github.com/trezcool/edunex/core/assignment"
	"github.com/trezcool/edunex/core/attendance"
	"github.com/trezcool/edunex/core/course"
	"github.com/trezcool/edunex/core/enrollment"
	"github.com/trezcool/edunex/core/quiz"
)

type Person struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	USN      string `json:"usn,omitempty"`
}

type GradeReport struct {
	Student        Person                  `json:"student"`
	Course         course.Course           `json:"course"`
	Instructor     Person                  `json:"instructor"`
	Enrollment     enrollment.Enrollment   `json:"enrollment"`
	Submissions    []assignment.Submission `json:"submissions"`
	QuizAttempts   []quiz.Attempt          `json:"quiz_attempts"`
	Attendance     []attendance.Attendance `json:"attendance"`
	AttendanceRate float64                 `json:"attendance_rate"`
}

type AttendanceRow struct {
	Student Person  `json:"student"`
	Present int     `json:"present"`
	Absent  int     `json:"absent"`
	Late    int     `json:"late"`
	Excused int     `json:"excused"`
	Total   int     `json:"total"`
	Rate    float64 `json:"rate"`
}

type AttendanceReport struct {
	Course course.Course   `json:"course"`
	Rows   []AttendanceRow `json:"rows"`
}

type PerformanceRow struct {
	Student           Person            `json:"student"`
	Status            enrollment.Status `json:"status"`
	Progress          float64           `json:"progress"`
	FinalGrade        *float64          `json:"final_grade"`
	QuizAttempts      int               `json:"quiz_attempts"`
	AvgQuizPercentage float64           `json:"avg_quiz_percentage"`
	AttendanceRate    float64           `json:"attendance_rate"`
}

type PerformanceReport struct {
	Course course.Course    `json:"course"`
	Rows   []PerformanceRow `json:"rows"`
}

// DashboardStats is the admin overview of the platform.
type DashboardStats struct {
	TotalUsers         int64   `json:"total_users" boil:"total_users"`
	Students           int64   `json:"students" boil:"students"`
	Instructors        int64   `json:"instructors" boil:"instructors"`
	Admins             int64   `json:"admins" boil:"admins"`
	ActiveUsers        int64   `json:"active_users" boil:"active_users"`
	TotalCourses       int64   `json:"total_courses" boil:"total_courses"`
	ActiveCourses      int64   `json:"active_courses" boil:"active_courses"`
	TotalEnrollments   int64   `json:"total_enrollments" boil:"total_enrollments"`
	TotalAssignments   int64   `json:"total_assignments" boil:"total_assignments"`
	PendingSubmissions int64   `json:"pending_submissions" boil:"pending_submissions"`
	TotalQuizzes       int64   `json:"total_quizzes" boil:"total_quizzes"`
	GradedAttempts     int64   `json:"graded_attempts" boil:"graded_attempts"`
	AvgQuizPercentage  float64 `json:"avg_quiz_percentage" boil:"avg_quiz_percentage"`
}

// MailRequest asks for a course report to be emailed as CSV to the requester.
type MailRequest struct {
	Report Kind `json:"report" validate:"required,oneof=attendance performance"`
}
