// Package features defines the nine model inputs shared by training and serving.
package features

import (
	"fmt"
	"math"
)

// Names is the canonical feature order. Training rows and serving rows are
// both laid out in this order.
var Names = []string{
	"Age_at_enrollment",
	"Curricular_units_1st_sem_approved",
	"Curricular_units_2nd_sem_approved",
	"Curricular_units_1st_sem_without_evaluations",
	"Curricular_units_2nd_sem_without_evaluations",
	"Curricular_units_1st_sem_grade",
	"Curricular_units_2nd_sem_grade",
	"Tuition_fees_up_to_date",
	"Scholarship_holder",
}

// Accepted input ranges.
const (
	MinAge   = 1
	MaxAge   = 120
	MaxUnits = 100
	MinGrade = 0.0
	MaxGrade = 20.0
)

// Vector is one student's feature values.
type Vector struct {
	AgeAtEnrollment      int     `json:"Age_at_enrollment"`
	FirstSemApproved     int     `json:"Curricular_units_1st_sem_approved"`
	SecondSemApproved    int     `json:"Curricular_units_2nd_sem_approved"`
	FirstSemWithoutEval  int     `json:"Curricular_units_1st_sem_without_evaluations"`
	SecondSemWithoutEval int     `json:"Curricular_units_2nd_sem_without_evaluations"`
	FirstSemGrade        float64 `json:"Curricular_units_1st_sem_grade"`
	SecondSemGrade       float64 `json:"Curricular_units_2nd_sem_grade"`
	TuitionFeesUpToDate  int     `json:"Tuition_fees_up_to_date"`
	ScholarshipHolder    int     `json:"Scholarship_holder"`
}

// Row returns the values in Names order.
func (v Vector) Row() []float64 {
	return []float64{
		float64(v.AgeAtEnrollment),
		float64(v.FirstSemApproved),
		float64(v.SecondSemApproved),
		float64(v.FirstSemWithoutEval),
		float64(v.SecondSemWithoutEval),
		v.FirstSemGrade,
		v.SecondSemGrade,
		float64(v.TuitionFeesUpToDate),
		float64(v.ScholarshipHolder),
	}
}

// Validate checks every field against its domain and reports the first
// offending field.
func (v Vector) Validate() error {
	if v.AgeAtEnrollment < MinAge || v.AgeAtEnrollment > MaxAge {
		return rangeError(Names[0], MinAge, MaxAge)
	}
	units := []int{v.FirstSemApproved, v.SecondSemApproved, v.FirstSemWithoutEval, v.SecondSemWithoutEval}
	for i, n := range units {
		if n < 0 || n > MaxUnits {
			return rangeError(Names[1+i], 0, MaxUnits)
		}
	}
	for i, g := range []float64{v.FirstSemGrade, v.SecondSemGrade} {
		if math.IsNaN(g) || g < MinGrade || g > MaxGrade {
			return rangeError(Names[5+i], MinGrade, MaxGrade)
		}
	}
	for i, flag := range []int{v.TuitionFeesUpToDate, v.ScholarshipHolder} {
		if flag != 0 && flag != 1 {
			return &FieldError{Field: Names[7+i], Msg: "must be 0 or 1"}
		}
	}
	return nil
}

// FieldError reports an invalid or missing input field.
type FieldError struct {
	Field string
	Msg   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Msg)
}

func rangeError[T int | float64](field string, lo, hi T) error {
	return &FieldError{Field: field, Msg: fmt.Sprintf("must be between %v and %v", lo, hi)}
}
