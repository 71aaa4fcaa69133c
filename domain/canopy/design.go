package canopy

import (
	"sort"

	"gocanopy/domain/core"
)

// GroupSet assigns a stable dense index to each distinct group label.
// Labels are indexed in sorted order so that repeated construction from
// the same observations is bit-identical; the same indexing is reused by
// the objectives, the optimizer and the Bayesian sampler.
type GroupSet struct {
	labels  []GroupLabel
	indices map[GroupLabel]int
}

// NewGroupSet builds a group set from the labels present in the observations
func NewGroupSet(observations []Observation) *GroupSet {
	seen := make(map[GroupLabel]bool)
	labels := make([]GroupLabel, 0)
	for _, obs := range observations {
		if !seen[obs.Group] {
			seen[obs.Group] = true
			labels = append(labels, obs.Group)
		}
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	indices := make(map[GroupLabel]int, len(labels))
	for i, label := range labels {
		indices[label] = i
	}
	return &GroupSet{labels: labels, indices: indices}
}

// Len returns the number of distinct groups
func (g *GroupSet) Len() int {
	return len(g.labels)
}

// Labels returns the group labels in index order
func (g *GroupSet) Labels() []GroupLabel {
	out := make([]GroupLabel, len(g.labels))
	copy(out, g.labels)
	return out
}

// Index returns the dense index of a label
func (g *GroupSet) Index(label GroupLabel) (int, bool) {
	idx, ok := g.indices[label]
	return idx, ok
}

// GroupedDesign holds the validated observations together with the N x G
// design matrix: entry (i,j) equals the predictor of observation i when
// the observation belongs to group j and zero otherwise. Each row has
// exactly one nonzero entry.
type GroupedDesign struct {
	groups       *GroupSet
	observations []Observation
	matrix       [][]float64
	rowGroup     []int
}

// NewGroupedDesign validates the observations and constructs the design.
// Construction is deterministic: the same observation sequence always
// produces the same group indexing and matrix.
func NewGroupedDesign(observations []Observation) (*GroupedDesign, error) {
	if len(observations) == 0 {
		return nil, core.ErrEmptyDataset
	}
	for i, obs := range observations {
		if err := obs.Validate(); err != nil {
			return nil, core.NewObservationError(i, err)
		}
	}

	groups := NewGroupSet(observations)
	n := len(observations)
	g := groups.Len()

	matrix := make([][]float64, n)
	rowGroup := make([]int, n)
	for i, obs := range observations {
		row := make([]float64, g)
		idx, _ := groups.Index(obs.Group)
		row[idx] = obs.Predictor
		matrix[i] = row
		rowGroup[i] = idx
	}

	copied := make([]Observation, n)
	copy(copied, observations)

	return &GroupedDesign{
		groups:       groups,
		observations: copied,
		matrix:       matrix,
		rowGroup:     rowGroup,
	}, nil
}

// Groups returns the group set
func (d *GroupedDesign) Groups() *GroupSet {
	return d.groups
}

// NumObservations returns the row count N
func (d *GroupedDesign) NumObservations() int {
	return len(d.observations)
}

// NumGroups returns the column count G
func (d *GroupedDesign) NumGroups() int {
	return d.groups.Len()
}

// Row returns row i of the design matrix
func (d *GroupedDesign) Row(i int) []float64 {
	return d.matrix[i]
}

// Matrix returns the full design matrix
func (d *GroupedDesign) Matrix() [][]float64 {
	return d.matrix
}

// GroupIndex returns the group column index of observation i
func (d *GroupedDesign) GroupIndex(i int) int {
	return d.rowGroup[i]
}

// Predictor returns the predictor of observation i
func (d *GroupedDesign) Predictor(i int) float64 {
	return d.observations[i].Predictor
}

// Response returns the response of observation i
func (d *GroupedDesign) Response(i int) float64 {
	return d.observations[i].Response
}

// Responses returns all responses in observation order
func (d *GroupedDesign) Responses() []float64 {
	out := make([]float64, len(d.observations))
	for i, obs := range d.observations {
		out[i] = obs.Response
	}
	return out
}

// Observations returns the validated observations in original order
func (d *GroupedDesign) Observations() []Observation {
	out := make([]Observation, len(d.observations))
	copy(out, d.observations)
	return out
}
