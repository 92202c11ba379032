package pipeline

import (
	"bytes"
	"image"

	"github.com/corona10/goimagehash"
)

// dedupThreshold is the maximum Hamming distance between two dHash values
// below which units are considered perceptually identical.
const dedupThreshold = 5

// dedupUnits maps each attempt index to the index of the first perceptually
// identical attempt (its representative). Representatives map to themselves.
// Only representatives are sent to the classifier; duplicates reuse their
// representative's score. Hashing failures degrade to "unique".
func dedupUnits(attempts []Attempt) map[int]int {
	reps := make(map[int]int, len(attempts))

	type seen struct {
		index int
		hash  *goimagehash.ImageHash
	}
	var distinct []seen

	for _, a := range attempts {
		if a.Err != nil {
			continue
		}

		reps[a.Index] = a.Index

		img, _, err := image.Decode(bytes.NewReader(a.Data))
		if err != nil {
			continue
		}

		hash, err := goimagehash.DifferenceHash(img)
		if err != nil {
			continue
		}

		matched := false
		for _, s := range distinct {
			dist, err := hash.Distance(s.hash)
			if err == nil && dist < dedupThreshold {
				reps[a.Index] = s.index
				matched = true
				break
			}
		}

		if !matched {
			distinct = append(distinct, seen{index: a.Index, hash: hash})
		}
	}

	return reps
}
