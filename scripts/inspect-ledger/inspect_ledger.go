package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"sort"

	"dropout-risk/internal/storage"
	"dropout-risk/internal/train"
)

func main() {
	var dataPath = flag.String("ledger", "./data/ledger", "Ledger directory path")
	flag.Parse()

	fmt.Printf("Inspecting ledger in: %s\n", *dataPath)

	store, err := storage.New(*dataPath)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	run, err := store.LatestRun(train.ModelName)
	if errors.Is(err, storage.ErrNoRuns) {
		fmt.Println("No training runs recorded")
		return
	}
	if err != nil {
		log.Fatalf("Failed to fetch latest run: %v", err)
	}

	fmt.Println("\nLatest training run:")
	fmt.Printf("  ID:        %s\n", run.ID)
	fmt.Printf("  Finished:  %v (took %v)\n", run.FinishedAt, run.Duration())
	fmt.Printf("  Data:      %s\n", run.DataPath)
	fmt.Printf("  Artifact:  %s\n", run.ArtifactPath)
	fmt.Printf("  SHA-256:   %s\n", run.ArtifactSHA256)
	fmt.Printf("  Rows:      %d train / %d test\n", run.TrainingRows, run.TestRows)
	fmt.Printf("  Accuracy:  %.4f\n", run.Accuracy)
	fmt.Printf("  ROC-AUC:   %.4f\n", run.ROCAUC)
	fmt.Printf("  Params:    %+v\n", run.Params)

	prep, err := store.GetPreparation(run.ID)
	if err != nil {
		fmt.Printf("\nNo preparation recorded: %v\n", err)
		return
	}

	fmt.Println("\nMedians used for imputation:")
	for _, name := range sortedKeys(prep.Medians) {
		fmt.Printf("  %-48s %10.4f\n", name, prep.Medians[name])
	}
	fmt.Println("\nText encodings:")
	for _, name := range sortedKeys(prep.Categories) {
		fmt.Printf("  %s:\n", name)
		for code, value := range prep.Categories[name] {
			fmt.Printf("    %d = %s\n", code, value)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
