package train

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Split holds the row indices of the two partitions, each in ascending order.
type Split struct {
	Train []int
	Test  []int
}

// StratifiedSplit partitions rows so that every class keeps its share in the
// held-out set. Each class contributes round(count*testRatio) rows to the test
// side, at least one, and keeps at least one on the training side. Rows of a
// class are shuffled with a source seeded by seed, so the split is
// reproducible.
func StratifiedSplit(labels []int, testRatio float64, seed int64) (Split, error) {
	if len(labels) == 0 {
		return Split{}, fmt.Errorf("cannot split an empty label set")
	}
	if testRatio <= 0 || testRatio >= 1 {
		return Split{}, fmt.Errorf("test ratio must be in (0, 1), got %v", testRatio)
	}

	byClass := make(map[int][]int)
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}
	classes := make([]int, 0, len(byClass))
	for class := range byClass {
		classes = append(classes, class)
	}
	sort.Ints(classes)

	rnd := rand.New(rand.NewSource(seed))
	var split Split
	for _, class := range classes {
		rows := byClass[class]
		if len(rows) < 2 {
			return Split{}, fmt.Errorf("class %d has %d row(s), at least 2 are needed to stratify", class, len(rows))
		}
		nTest := int(math.Round(float64(len(rows)) * testRatio))
		nTest = max(1, min(nTest, len(rows)-1))

		shuffled := make([]int, len(rows))
		copy(shuffled, rows)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		split.Test = append(split.Test, shuffled[:nTest]...)
		split.Train = append(split.Train, shuffled[nTest:]...)
	}
	sort.Ints(split.Train)
	sort.Ints(split.Test)
	return split, nil
}
