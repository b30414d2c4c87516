package model

import "sort"

// PersonLabel is the detector label whose count is the "people count".
const PersonLabel = "person"

// Counts maps a detector label to the number of times it was seen.
type Counts map[string]int

// Add records one more occurrence of label.
func (c Counts) Add(label string) {
	c[label]++
}

// Merge adds every entry of other into c.
func (c Counts) Merge(other Counts) {
	for label, n := range other {
		c[label] += n
	}
}

// People returns the person count, zero when absent.
func (c Counts) People() int {
	return c[PersonLabel]
}

// Total returns the sum over all labels.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}

// Labels returns the labels in lexical order.
func (c Counts) Labels() []string {
	labels := make([]string, 0, len(c))
	for label := range c {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// Clone returns an independent copy; a nil table clones to an empty one.
func (c Counts) Clone() Counts {
	out := make(Counts, len(c))
	for label, n := range c {
		out[label] = n
	}
	return out
}

// Equal reports whether both tables hold the same entries.
func (c Counts) Equal(other Counts) bool {
	if len(c) != len(other) {
		return false
	}
	for label, n := range c {
		if m, ok := other[label]; !ok || m != n {
			return false
		}
	}
	return true
}

type ReportMode string

const (
	ModeLive  ReportMode = "live"
	ModeImage ReportMode = "image"
	ModeVideo ReportMode = "video"
)
