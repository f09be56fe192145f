package engine

import (
	"sort"
	"strconv"

	"github.com/kitware/ctest-go/internal/testmodel"
)

// numWidth computes the display column width for print_test_list: the
// decimal digit count of the highest test id, plus one, matching the
// original's getNumWidth plus its one-character punctuation allowance.
func numWidth(maxID int) int {
	if maxID < 1 {
		maxID = 1
	}
	return len(strconv.Itoa(maxID)) + 1
}

func sortIDs(ids []testmodel.ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
