package features

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/url"
	"reflect"
	"strconv"
	"strings"
)

// maxWhole bounds WholeNumber to integers a float64 holds exactly.
const maxWhole = 1 << 53

// WholeNumber is an integer field on the wire. It accepts 19 and 19.0 alike,
// since clients that hold every number as a float send the latter; 19.5 and
// strings are type errors.
type WholeNumber int

// UnmarshalJSON implements json.Unmarshaler.
func (n *WholeNumber) UnmarshalJSON(data []byte) error {
	raw := string(data)
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || raw[0] == '"' || f != math.Trunc(f) || math.Abs(f) > maxWhole {
		return &json.UnmarshalTypeError{Value: "number " + raw, Type: reflect.TypeOf(0)}
	}
	*n = WholeNumber(f)
	return nil
}

// Request is the wire form of a Vector. Pointer fields tell an absent field
// from a zero value.
type Request struct {
	AgeAtEnrollment      *WholeNumber `json:"Age_at_enrollment"`
	FirstSemApproved     *WholeNumber `json:"Curricular_units_1st_sem_approved"`
	SecondSemApproved    *WholeNumber `json:"Curricular_units_2nd_sem_approved"`
	FirstSemWithoutEval  *WholeNumber `json:"Curricular_units_1st_sem_without_evaluations"`
	SecondSemWithoutEval *WholeNumber `json:"Curricular_units_2nd_sem_without_evaluations"`
	FirstSemGrade        *float64     `json:"Curricular_units_1st_sem_grade"`
	SecondSemGrade       *float64     `json:"Curricular_units_2nd_sem_grade"`
	TuitionFeesUpToDate  *WholeNumber `json:"Tuition_fees_up_to_date"`
	ScholarshipHolder    *WholeNumber `json:"Scholarship_holder"`
}

func whole(v int) *WholeNumber {
	n := WholeNumber(v)
	return &n
}

// NewRequest wraps a complete Vector.
func NewRequest(v Vector) Request {
	return Request{
		AgeAtEnrollment:      whole(v.AgeAtEnrollment),
		FirstSemApproved:     whole(v.FirstSemApproved),
		SecondSemApproved:    whole(v.SecondSemApproved),
		FirstSemWithoutEval:  whole(v.FirstSemWithoutEval),
		SecondSemWithoutEval: whole(v.SecondSemWithoutEval),
		FirstSemGrade:        &v.FirstSemGrade,
		SecondSemGrade:       &v.SecondSemGrade,
		TuitionFeesUpToDate:  whole(v.TuitionFeesUpToDate),
		ScholarshipHolder:    whole(v.ScholarshipHolder),
	}
}

// Vector checks that every field is present and returns the plain values.
// The first absent field in Names order is reported. Domain ranges are
// checked by Vector.Validate.
func (r Request) Vector() (Vector, error) {
	ints := []*WholeNumber{
		r.AgeAtEnrollment, r.FirstSemApproved, r.SecondSemApproved,
		r.FirstSemWithoutEval, r.SecondSemWithoutEval,
	}
	for i, p := range ints {
		if p == nil {
			return Vector{}, missing(Names[i])
		}
	}
	if r.FirstSemGrade == nil {
		return Vector{}, missing(Names[5])
	}
	if r.SecondSemGrade == nil {
		return Vector{}, missing(Names[6])
	}
	if r.TuitionFeesUpToDate == nil {
		return Vector{}, missing(Names[7])
	}
	if r.ScholarshipHolder == nil {
		return Vector{}, missing(Names[8])
	}

	return Vector{
		AgeAtEnrollment:      int(*r.AgeAtEnrollment),
		FirstSemApproved:     int(*r.FirstSemApproved),
		SecondSemApproved:    int(*r.SecondSemApproved),
		FirstSemWithoutEval:  int(*r.FirstSemWithoutEval),
		SecondSemWithoutEval: int(*r.SecondSemWithoutEval),
		FirstSemGrade:        *r.FirstSemGrade,
		SecondSemGrade:       *r.SecondSemGrade,
		TuitionFeesUpToDate:  int(*r.TuitionFeesUpToDate),
		ScholarshipHolder:    int(*r.ScholarshipHolder),
	}, nil
}

func missing(field string) error {
	return &FieldError{Field: field, Msg: "is required"}
}

// DecodeJSON reads a Request from r. Unknown fields, trailing data and
// mistyped values are rejected; type errors carry the offending field.
// Integer fields accept whole-valued floats such as 19.0.
func DecodeJSON(r io.Reader) (Vector, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var req Request
	if err := dec.Decode(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return Vector{}, &FieldError{Field: typeErr.Field, Msg: fmt.Sprintf("must be of type %s", typeErr.Type)}
		}
		if errors.Is(err, io.EOF) {
			return Vector{}, fmt.Errorf("empty request body")
		}
		return Vector{}, fmt.Errorf("malformed request body: %w", err)
	}
	if dec.More() {
		return Vector{}, fmt.Errorf("malformed request body: unexpected data after object")
	}
	return req.Vector()
}

// EncodeJSON renders v in wire form.
func EncodeJSON(v Vector) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(NewRequest(v)); err != nil {
		return nil, err
	}
	return bytes.TrimSpace(buf.Bytes()), nil
}

// FromForm builds a Vector from submitted form values. Flags accept the
// checkbox and select spellings (on, yes, true, 1 and no, off, false, 0); an
// absent flag means 0. Integer fields accept "19" and "19.0".
func FromForm(values url.Values) (Vector, error) {
	var v Vector
	var err error

	intFields := []struct {
		name string
		dst  *int
	}{
		{Names[0], &v.AgeAtEnrollment},
		{Names[1], &v.FirstSemApproved},
		{Names[2], &v.SecondSemApproved},
		{Names[3], &v.FirstSemWithoutEval},
		{Names[4], &v.SecondSemWithoutEval},
	}
	for _, f := range intFields {
		if *f.dst, err = formInt(values, f.name); err != nil {
			return Vector{}, err
		}
	}
	if v.FirstSemGrade, err = formFloat(values, Names[5]); err != nil {
		return Vector{}, err
	}
	if v.SecondSemGrade, err = formFloat(values, Names[6]); err != nil {
		return Vector{}, err
	}
	if v.TuitionFeesUpToDate, err = formFlag(values, Names[7]); err != nil {
		return Vector{}, err
	}
	if v.ScholarshipHolder, err = formFlag(values, Names[8]); err != nil {
		return Vector{}, err
	}
	return v, nil
}

func formFloat(values url.Values, name string) (float64, error) {
	raw := strings.TrimSpace(values.Get(name))
	if raw == "" {
		return 0, missing(name)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &FieldError{Field: name, Msg: "must be a number"}
	}
	return f, nil
}

func formInt(values url.Values, name string) (int, error) {
	f, err := formFloat(values, name)
	if err != nil {
		var fe *FieldError
		if errors.As(err, &fe) && fe.Msg == "must be a number" {
			fe.Msg = "must be a whole number"
		}
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, &FieldError{Field: name, Msg: "must be a whole number"}
	}
	return int(f), nil
}

// ParseFlag maps a Yes/No style value onto 1/0.
func ParseFlag(raw string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "0", "no", "off", "false":
		return 0, true
	case "1", "yes", "on", "true":
		return 1, true
	}
	return 0, false
}

func formFlag(values url.Values, name string) (int, error) {
	flag, ok := ParseFlag(values.Get(name))
	if !ok {
		return 0, &FieldError{Field: name, Msg: "must be Yes or No"}
	}
	return flag, nil
}
