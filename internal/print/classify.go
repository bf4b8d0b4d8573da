package print

import (
	"slices"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
)

type objectStatus int

const (
	statusOld objectStatus = iota
	statusNew
	statusMoved
	statusDeleted
)

func (s objectStatus) String() string {
	switch s {
	case statusNew:
		return "new"
	case statusMoved:
		return "moved"
	case statusDeleted:
		return "deleted"
	default:
		return "old"
	}
}

// classifyObjects compares the baseline object order with the incoming one.
// Both lists must be free of duplicates.
func classifyObjects(oldIDs, newIDs []objectid.ID) map[objectid.ID]objectStatus {
	out := make(map[objectid.ID]objectStatus, max(len(oldIDs), len(newIDs)))
	switch {
	case slices.Equal(oldIDs, newIDs):
		for _, id := range oldIDs {
			out[id] = statusOld
		}
	case len(newIDs) > len(oldIDs) && slices.Equal(oldIDs, newIDs[:len(oldIDs)]):
		for _, id := range oldIDs {
			out[id] = statusOld
		}
		for _, id := range newIDs[len(oldIDs):] {
			out[id] = statusNew
		}
	default:
		oldPos := make(map[objectid.ID]int, len(oldIDs))
		for i, id := range oldIDs {
			oldPos[id] = i
		}
		newPos := make(map[objectid.ID]int, len(newIDs))
		for i, id := range newIDs {
			newPos[id] = i
		}
		oldSorted := slices.Sorted(slices.Values(oldIDs))
		newSorted := slices.Sorted(slices.Values(newIDs))
		i, j := 0, 0
		for i < len(oldSorted) || j < len(newSorted) {
			switch {
			case j == len(newSorted) || (i < len(oldSorted) && oldSorted[i] < newSorted[j]):
				out[oldSorted[i]] = statusDeleted
				i++
			case i == len(oldSorted) || newSorted[j] < oldSorted[i]:
				out[newSorted[j]] = statusNew
				j++
			default:
				id := oldSorted[i]
				if oldPos[id] == newPos[id] {
					out[id] = statusOld
				} else {
					out[id] = statusMoved
				}
				i++
				j++
			}
		}
	}
	return out
}
