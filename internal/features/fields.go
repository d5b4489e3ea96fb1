package features

// FieldKind tells how a form renders and parses a field.
type FieldKind int

const (
	IntField FieldKind = iota
	FloatField
	FlagField
)

// Field describes one input for the web forms.
type Field struct {
	Name    string
	Label   string
	Kind    FieldKind
	Min     float64
	Max     float64
	Step    float64
	Default float64
}

// IsFlag reports whether the field is a Yes/No choice.
func (f Field) IsFlag() bool { return f.Kind == FlagField }

// Fields lists the inputs in Names order.
var Fields = []Field{
	{Name: Names[0], Label: "Age at Enrollment", Kind: IntField, Min: MinAge, Max: MaxAge, Step: 1, Default: 20},
	{Name: Names[1], Label: "Curricular Units 1st Sem (Approved)", Kind: IntField, Max: MaxUnits, Step: 1, Default: 5},
	{Name: Names[2], Label: "Curricular Units 2nd Sem (Approved)", Kind: IntField, Max: MaxUnits, Step: 1, Default: 5},
	{Name: Names[3], Label: "Curricular Units 1st Sem (Without Evaluations)", Kind: IntField, Max: MaxUnits, Step: 1},
	{Name: Names[4], Label: "Curricular Units 2nd Sem (Without Evaluations)", Kind: IntField, Max: MaxUnits, Step: 1},
	{Name: Names[5], Label: "Curricular Units 1st Sem (Grade)", Kind: FloatField, Min: MinGrade, Max: MaxGrade, Step: 0.1, Default: 12},
	{Name: Names[6], Label: "Curricular Units 2nd Sem (Grade)", Kind: FloatField, Min: MinGrade, Max: MaxGrade, Step: 0.1, Default: 12},
	{Name: Names[7], Label: "Tuition Fees Up to Date", Kind: FlagField, Max: 1, Default: 1},
	{Name: Names[8], Label: "Scholarship Holder", Kind: FlagField, Max: 1},
}
