package report

import (
	"encoding/csv"
	"io"
	"strconv"
)

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }

// WriteAttendanceCSV renders an attendance report, one student per line.
func WriteAttendanceCSV(w io.Writer, rep AttendanceReport) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Student", "USN", "Present", "Absent", "Late", "Excused", "Total", "Rate"})
	for _, r := range rep.Rows {
		_ = cw.Write([]string{
			r.Student.Name,
			r.Student.USN,
			strconv.Itoa(r.Present),
			strconv.Itoa(r.Absent),
			strconv.Itoa(r.Late),
			strconv.Itoa(r.Excused),
			strconv.Itoa(r.Total),
			formatFloat(r.Rate),
		})
	}
	cw.Flush()
	return cw.Error()
}

// WritePerformanceCSV renders a performance report, one student per line.
func WritePerformanceCSV(w io.Writer, rep PerformanceReport) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Student", "USN", "Status", "Progress", "Final Grade", "Quiz Attempts", "Avg Quiz %", "Attendance %"})
	for _, r := range rep.Rows {
		grade := "N/A"
		if r.FinalGrade != nil {
			grade = formatFloat(*r.FinalGrade)
		}
		_ = cw.Write([]string{
			r.Student.Name,
			r.Student.USN,
			string(r.Status),
			formatFloat(r.Progress),
			grade,
			strconv.Itoa(r.QuizAttempts),
			formatFloat(r.AvgQuizPercentage),
			formatFloat(r.AttendanceRate),
		})
	}
	cw.Flush()
	return cw.Error()
}
