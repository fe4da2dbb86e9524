package grade

import "math"

// Average returns the arithmetic mean of values, or 0 for an empty set.
// The result is exact; rounding belongs to whoever reports it.
func Average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Values extracts the grade values from grades.
func Values(grades []*Grade) []float64 {
	out := make([]float64, len(grades))
	for i, g := range grades {
		out[i] = g.Value
	}
	return out
}

// Round rounds x to places decimals, with midpoints rounded away from zero.
func Round(x float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(x*pow) / pow
}

// Summary is the derived view of one student's grade set.
type Summary struct {
	Grades  []*Grade
	Average float64
	Total   int
}

// Summarize computes the Summary of grades.
func Summarize(grades []*Grade) Summary {
	if grades == nil {
		grades = []*Grade{}
	}
	return Summary{
		Grades:  grades,
		Average: Average(Values(grades)),
		Total:   len(grades),
	}
}

// GroupByStudent indexes grades by their student id.
func GroupByStudent(grades []*Grade) map[int64][]*Grade {
	out := make(map[int64][]*Grade)
	for _, g := range grades {
		out[g.StudentID] = append(out[g.StudentID], g)
	}
	return out
}
