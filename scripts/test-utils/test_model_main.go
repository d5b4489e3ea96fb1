package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"dropout-risk/internal/common"
	"dropout-risk/internal/features"
	"dropout-risk/internal/ml"
)

func main() {
	fmt.Println("🧪 Testing dropout model artifact")
	fmt.Println("=================================")

	modelPath := common.DefaultModelPath
	if len(os.Args) > 1 {
		modelPath = os.Args[1]
	}
	scheme := ml.TwoBucket
	if len(os.Args) > 2 {
		s, err := ml.ParseRiskScheme(os.Args[2])
		if err != nil {
			log.Fatalf("❌ %v", err)
		}
		scheme = s
	}

	absPath, err := filepath.Abs(modelPath)
	if err != nil {
		log.Fatalf("❌ Failed to get absolute path: %v", err)
	}
	fmt.Printf("📁 Model path: %s\n", absPath)

	fmt.Println("\n🔧 Test 1: Loading predictor...")
	predictor := ml.NewPredictor(ml.PredictorConfig{ModelPath: absPath, RiskScheme: scheme}, nil)
	meta, ok := predictor.Metadata()
	if !ok {
		log.Fatalf("❌ Model not loaded: %s", predictor.Health().LastError)
	}
	fmt.Printf("✅ Loaded version %s (accuracy %.4f, ROC-AUC %.4f)\n", meta.Version, meta.Accuracy, meta.ROCAUC)

	ctx := context.Background()

	fmt.Println("\n🔧 Test 2: Scoring sample students...")
	testCases := []struct {
		name     string
		student  features.Vector
		expected string
	}{
		{
			name:     "Strong student, fees paid",
			student:  features.Vector{AgeAtEnrollment: 19, FirstSemApproved: 6, SecondSemApproved: 6, FirstSemGrade: 15.2, SecondSemGrade: 14.8, TuitionFeesUpToDate: 1, ScholarshipHolder: 1},
			expected: "Low Risk",
		},
		{
			name:     "No approved units, fees unpaid",
			student:  features.Vector{AgeAtEnrollment: 27, FirstSemWithoutEval: 2, SecondSemWithoutEval: 3},
			expected: "High Risk",
		},
		{
			name:     "Average student",
			student:  features.Vector{AgeAtEnrollment: 20, FirstSemApproved: 5, SecondSemApproved: 5, FirstSemGrade: 12, SecondSemGrade: 12, TuitionFeesUpToDate: 1},
			expected: "Low Risk",
		},
	}

	for i, tc := range testCases {
		fmt.Printf("\n  Test 2.%d: %s\n", i+1, tc.name)
		res, err := predictor.Predict(ctx, tc.student)
		if err != nil {
			fmt.Printf("    ❌ Prediction failed: %v\n", err)
			continue
		}
		fmt.Printf("    📊 Dropout probability: %.4f\n", res.Probability)
		fmt.Printf("    📈 Risk category: %s\n", res.RiskCategory)
		fmt.Printf("    💡 Expected: %s\n", tc.expected)
	}

	fmt.Println("\n🔧 Test 3: Sweeping first semester grade...")
	high := 0
	total := 0
	for grade := 0.0; grade <= 20; grade += 0.5 {
		v := testCases[2].student
		v.FirstSemGrade = grade
		res, err := predictor.Predict(ctx, v)
		if err != nil {
			log.Fatalf("❌ Prediction failed at grade %.1f: %v", grade, err)
		}
		total++
		if res.RiskCategory == common.RiskHigh {
			high++
		}
	}
	fmt.Printf("  📊 High risk share: %.1f%% (%d/%d)\n", float64(high)/float64(total)*100, high, total)

	fmt.Println("\n🔧 Test 4: Rejecting invalid input...")
	invalid := []struct {
		name    string
		student features.Vector
	}{
		{"Age zero", features.Vector{AgeAtEnrollment: 0}},
		{"Grade above 20", features.Vector{AgeAtEnrollment: 20, FirstSemGrade: 21}},
		{"Negative units", features.Vector{AgeAtEnrollment: 20, SecondSemApproved: -1}},
		{"Flag out of range", features.Vector{AgeAtEnrollment: 20, TuitionFeesUpToDate: 2}},
	}
	for i, tc := range invalid {
		_, err := predictor.Predict(ctx, tc.student)
		var fieldErr *ml.ValidationError
		if errors.As(err, &fieldErr) {
			fmt.Printf("  Test 4.%d: %s ✅ rejected (%s)\n", i+1, tc.name, fieldErr.Field)
		} else {
			fmt.Printf("  Test 4.%d: %s ❌ accepted\n", i+1, tc.name)
		}
	}

	fmt.Println("\n✅ Model checks complete")
}
