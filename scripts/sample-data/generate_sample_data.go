package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var header = []string{
	"Marital status",
	"Course",
	"Daytime/evening attendance",
	"Gender",
	"Age at enrollment",
	"Curricular units 1st sem (enrolled)",
	"Curricular units 1st sem (approved)",
	"Curricular units 1st sem (without evaluations)",
	"Curricular units 1st sem (grade)",
	"Curricular units 2nd sem (enrolled)",
	"Curricular units 2nd sem (approved)",
	"Curricular units 2nd sem (without evaluations)",
	"Curricular units 2nd sem (grade)",
	"Debtor",
	"Tuition fees up to date",
	"Scholarship holder",
	"Status",
}

var courses = []string{"Nursing", "Management", "Social Service", "Informatics Engineering", "Design", "Tourism"}

func main() {
	var (
		out     = flag.String("out", "data/students.csv", "Output file (.csv or .xlsx)")
		rows    = flag.Int("rows", 4424, "Number of students to generate")
		seed    = flag.Int64("seed", 42, "Random seed")
		missing = flag.Float64("missing", 0.01, "Share of blank numeric cells")
	)
	flag.Parse()

	fmt.Printf("Generating sample student data...\n")
	fmt.Printf("  Rows: %d\n", *rows)
	fmt.Printf("  Seed: %d\n", *seed)
	fmt.Printf("  Output: %s\n", *out)

	records := generateStudents(rand.New(rand.NewSource(*seed)), *rows, *missing)

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	var err error
	switch strings.ToLower(filepath.Ext(*out)) {
	case ".xlsx":
		err = writeWorkbook(*out, records)
	default:
		err = writeDelimited(*out, records)
	}
	if err != nil {
		log.Fatalf("Failed to write data: %v", err)
	}

	fmt.Printf("✓ Generated %d students in %s\n", *rows, *out)
}

// generateStudents simulates enrolments where weak first-year results and
// unpaid fees drive dropout, as in the real registry.
func generateStudents(rnd *rand.Rand, n int, missing float64) [][]string {
	records := make([][]string, 0, n+1)
	records = append(records, header)

	for i := 0; i < n; i++ {
		age := 17 + int(math.Abs(rnd.NormFloat64())*7)
		ability := rnd.NormFloat64()
		fees := 1
		if rnd.Float64() < 0.12 {
			fees = 0
		}
		debtor := 0
		if fees == 0 && rnd.Float64() < 0.6 {
			debtor = 1
		}
		scholarship := 0
		if ability > 0.5 && rnd.Float64() < 0.5 {
			scholarship = 1
		}

		enrolled1 := 5 + rnd.Intn(3)
		enrolled2 := 5 + rnd.Intn(3)
		approved1, grade1, noEval1 := semester(rnd, ability, enrolled1)
		approved2, grade2, noEval2 := semester(rnd, ability-0.1, enrolled2)

		risk := -0.9*ability - 1.6*float64(fees) + 0.04*float64(age-20) + 0.5*float64(debtor) - 0.6*float64(scholarship)
		status := "Graduate"
		switch p := 1 / (1 + math.Exp(-risk)); {
		case rnd.Float64() < p:
			status = "Dropout"
		case rnd.Float64() < 0.25:
			status = "Enrolled"
		}

		row := []string{
			strconv.Itoa(1 + rnd.Intn(4)),
			courses[rnd.Intn(len(courses))],
			strconv.Itoa(rnd.Intn(2)),
			strconv.Itoa(rnd.Intn(2)),
			strconv.Itoa(age),
			strconv.Itoa(enrolled1),
			strconv.Itoa(approved1),
			strconv.Itoa(noEval1),
			strconv.FormatFloat(grade1, 'f', 6, 64),
			strconv.Itoa(enrolled2),
			strconv.Itoa(approved2),
			strconv.Itoa(noEval2),
			strconv.FormatFloat(grade2, 'f', 6, 64),
			strconv.Itoa(debtor),
			strconv.Itoa(fees),
			strconv.Itoa(scholarship),
			status,
		}
		// Blank a few numeric cells so the median imputation has work to do.
		for c := 4; c < len(row)-1; c++ {
			if rnd.Float64() < missing {
				row[c] = ""
			}
		}
		records = append(records, row)
	}
	return records
}

func semester(rnd *rand.Rand, ability float64, enrolled int) (approved int, grade float64, noEval int) {
	share := 1 / (1 + math.Exp(-(1.2*ability + 0.8 + 0.3*rnd.NormFloat64())))
	approved = int(math.Round(share * float64(enrolled)))
	if rnd.Float64() < 0.05 {
		noEval = 1 + rnd.Intn(2)
	}
	if approved == 0 {
		return 0, 0, noEval
	}
	grade = math.Max(10, math.Min(18.5, 12.5+1.8*ability+0.7*rnd.NormFloat64()))
	return approved, grade, noEval
}

func writeDelimited(path string, records [][]string) error {
	var b strings.Builder
	for _, r := range records {
		b.WriteString(strings.Join(r, ";"))
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func writeWorkbook(path string, records [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(r))
		for j, v := range r {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return err
		}
	}
	return f.SaveAs(path)
}
